// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"career-platform/internal/workflow"
)

// MemStore 内存实现：map + 待执行队列。单进程部署与测试用。
type MemStore struct {
	mu      sync.Mutex
	byID    map[string]*Job
	pending []string
}

// NewMemStore 创建内存 Store
func NewMemStore() *MemStore {
	return &MemStore{byID: map[string]*Job{}}
}

// Create 实现 Store
func (s *MemStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = "job-" + uuid.NewString()
	}
	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	cp := *job
	s.byID[job.ID] = &cp
	s.pending = append(s.pending, job.ID)
	return nil
}

// Get 实现 Store
func (s *MemStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return nil, ErrUnknownJob
	}
	cp := *j
	return &cp, nil
}

// ClaimNext 实现 Store
func (s *MemStore) ClaimNext(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]
		j, ok := s.byID[id]
		if !ok {
			continue // 已被驱逐
		}
		switch j.Status {
		case StatusQueued:
			j.Status = StatusRunning
			j.UpdatedAt = time.Now()
		case StatusRunning:
			// resume 路径：Approve 已置 running
			j.UpdatedAt = time.Now()
		default:
			continue
		}
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

// Suspend 实现 Store
func (s *MemStore) Suspend(_ context.Context, id string, snapshot []byte, checkpoint workflow.CheckpointName, payload map[string]any, elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return ErrUnknownJob
	}
	if !j.Status.CanTransitionTo(StatusAwaitingApproval) {
		return fmt.Errorf("%w: %s → awaiting_approval", ErrInvalidTransition, j.Status)
	}
	j.Status = StatusAwaitingApproval
	j.Snapshot = snapshot
	j.Checkpoint = checkpoint
	j.CheckpointPayload = payload
	j.ExecElapsed += elapsed
	j.SuspendedAt = time.Now()
	j.UpdatedAt = j.SuspendedAt
	return nil
}

// Resume 实现 Store
func (s *MemStore) Resume(_ context.Context, id string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return ErrUnknownJob
	}
	if j.Status != StatusAwaitingApproval {
		return ErrNotAwaiting
	}
	j.Status = StatusRunning
	j.Snapshot = snapshot
	j.Checkpoint = ""
	j.CheckpointPayload = nil
	j.SuspendedAt = time.Time{}
	j.UpdatedAt = time.Now()
	s.pending = append(s.pending, id)
	return nil
}

// Complete 实现 Store
func (s *MemStore) Complete(_ context.Context, id string, snapshot []byte, elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return ErrUnknownJob
	}
	if !j.Status.CanTransitionTo(StatusCompleted) {
		return fmt.Errorf("%w: %s → completed", ErrInvalidTransition, j.Status)
	}
	j.Status = StatusCompleted
	j.Snapshot = snapshot
	j.ExecElapsed += elapsed
	j.FinishedAt = time.Now()
	j.UpdatedAt = j.FinishedAt
	return nil
}

// Fail 实现 Store
func (s *MemStore) Fail(_ context.Context, id string, snapshot []byte, kind workflow.FailureKind, msg string, elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return ErrUnknownJob
	}
	if !j.Status.CanTransitionTo(StatusFailed) {
		return fmt.Errorf("%w: %s → failed", ErrInvalidTransition, j.Status)
	}
	j.Status = StatusFailed
	if snapshot != nil {
		j.Snapshot = snapshot // 保留部分状态供诊断
	}
	j.FailureKind = kind
	j.Error = msg
	j.ExecElapsed += elapsed
	j.FinishedAt = time.Now()
	j.UpdatedAt = j.FinishedAt
	return nil
}

// Sweep 实现 Store
func (s *MemStore) Sweep(_ context.Context, terminalBefore, suspendedBefore time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	terminal, suspended := 0, 0
	for id, j := range s.byID {
		if j.Status.Terminal() && j.FinishedAt.Before(terminalBefore) {
			delete(s.byID, id)
			terminal++
			continue
		}
		if j.Status == StatusAwaitingApproval && j.SuspendedAt.Before(suspendedBefore) {
			delete(s.byID, id)
			suspended++
		}
	}
	return terminal, suspended, nil
}

// ReclaimStale 实现 Store
func (s *MemStore) ReclaimStale(_ context.Context, updatedBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := make(map[string]bool, len(s.pending))
	for _, id := range s.pending {
		queued[id] = true
	}
	reclaimed := 0
	for id, j := range s.byID {
		if j.Status != StatusRunning || queued[id] || !j.UpdatedAt.Before(updatedBefore) {
			continue
		}
		j.UpdatedAt = time.Now()
		s.pending = append(s.pending, id)
		reclaimed++
	}
	return reclaimed, nil
}

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

// Package registry Job Registry：把不透明 job_id 映射到一次工作流执行的
// 当前状态，支持异步提交、状态轮询与检查点恢复。job 的状态只能沿
// queued → running → {awaiting_approval ⇄ running}* → completed|failed
// 演进，终态吸收。
package registry

import (
	"time"

	"career-platform/internal/workflow"
)

// Status job 对外可见状态
type Status string

const (
	StatusQueued           Status = "queued"
	StatusRunning          Status = "running"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Terminal 终态判断；终态吸收，不允许任何后续转移
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo 状态机合法转移判断
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusAwaitingApproval || next == StatusCompleted || next == StatusFailed
	case StatusAwaitingApproval:
		return next == StatusRunning
	default:
		return false
	}
}

// Job 异步工作的外部可见单元。Snapshot 是自包含的 WorkflowState JSON，
// 挂起与终态都以它为准，其他字段是便于查询的冗余。
type Job struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	// Snapshot 最新 WorkflowState 快照
	Snapshot []byte `json:"snapshot,omitempty"`
	// Checkpoint/CheckpointPayload 仅在 awaiting_approval 时非空
	Checkpoint        workflow.CheckpointName `json:"checkpoint,omitempty"`
	CheckpointPayload map[string]any          `json:"checkpoint_payload,omitempty"`
	// FailureKind/Error 仅在 failed 时非空
	FailureKind workflow.FailureKind `json:"failure_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
	// ExecElapsed 累计执行耗时（不含挂起等待人工的时间）
	ExecElapsed time.Duration `json:"exec_elapsed,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SuspendedAt time.Time `json:"suspended_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

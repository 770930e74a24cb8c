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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"career-platform/internal/workflow"
)

// pgSchema jobs 表结构；pending 标记待执行（fresh queued 或 resume 重新入队）
const pgSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id                 TEXT PRIMARY KEY,
    status             TEXT NOT NULL,
    pending            BOOLEAN NOT NULL DEFAULT FALSE,
    snapshot           JSONB,
    checkpoint         TEXT NOT NULL DEFAULT '',
    checkpoint_payload JSONB,
    failure_kind       TEXT NOT NULL DEFAULT '',
    error              TEXT NOT NULL DEFAULT '',
    exec_elapsed_ms    BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    suspended_at       TIMESTAMPTZ,
    finished_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs (created_at) WHERE pending;
`

// PGStore PostgreSQL 实现：多进程部署时 API 与 worker 共享的 job 表，
// 原子性靠 CAS UPDATE 与 FOR UPDATE SKIP LOCKED。
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore 创建 PostgreSQL Store 并确保表结构存在
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 jobs 表failed: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close 关闭连接池
func (s *PGStore) Close() {
	s.pool.Close()
}

// Create 实现 Store
func (s *PGStore) Create(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = "job-" + uuid.NewString()
	}
	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, pending, snapshot, created_at, updated_at)
		 VALUES ($1, $2, TRUE, $3, $4, $4)`,
		job.ID, string(job.Status), job.Snapshot, job.CreatedAt)
	return err
}

// Get 实现 Store
func (s *PGStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, snapshot, checkpoint, checkpoint_payload, failure_kind, error,
		        exec_elapsed_ms, created_at, updated_at, suspended_at, finished_at
		 FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var status, checkpoint string
	var payload []byte
	var elapsedMS int64
	var suspendedAt, finishedAt *time.Time
	err := row.Scan(&j.ID, &status, &j.Snapshot, &checkpoint, &payload, &j.FailureKind, &j.Error,
		&elapsedMS, &j.CreatedAt, &j.UpdatedAt, &suspendedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownJob
	}
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.Checkpoint = workflow.CheckpointName(checkpoint)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.CheckpointPayload); err != nil {
			return nil, fmt.Errorf("解析 checkpoint_payload failed: %w", err)
		}
	}
	j.ExecElapsed = time.Duration(elapsedMS) * time.Millisecond
	if suspendedAt != nil {
		j.SuspendedAt = *suspendedAt
	}
	if finishedAt != nil {
		j.FinishedAt = *finishedAt
	}
	return &j, nil
}

// ClaimNext 实现 Store：SKIP LOCKED 保证多 worker 不会认领同一 job
func (s *PGStore) ClaimNext(ctx context.Context) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET pending = FALSE,
		       status = CASE WHEN status = 'queued' THEN 'running' ELSE status END,
		       updated_at = now()
		 WHERE id = (SELECT id FROM jobs WHERE pending ORDER BY created_at
		             FOR UPDATE SKIP LOCKED LIMIT 1)
		 RETURNING id, status, snapshot, checkpoint, checkpoint_payload, failure_kind, error,
		           exec_elapsed_ms, created_at, updated_at, suspended_at, finished_at`)
	j, err := scanJob(row)
	if errors.Is(err, ErrUnknownJob) {
		return nil, nil
	}
	return j, err
}

// Suspend 实现 Store
func (s *PGStore) Suspend(ctx context.Context, id string, snapshot []byte, checkpoint workflow.CheckpointName, payload map[string]any, elapsed time.Duration) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'awaiting_approval', snapshot = $2, checkpoint = $3,
		       checkpoint_payload = $4, exec_elapsed_ms = exec_elapsed_ms + $5,
		       suspended_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'running'`,
		id, snapshot, string(checkpoint), payloadJSON, elapsed.Milliseconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, StatusAwaitingApproval)
	}
	return nil
}

// Resume 实现 Store：CAS，并发 Approve 只有一个成功
func (s *PGStore) Resume(ctx context.Context, id string, snapshot []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'running', pending = TRUE, snapshot = $2,
		       checkpoint = '', checkpoint_payload = NULL, suspended_at = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'awaiting_approval'`,
		id, snapshot)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return gerr
		}
		return ErrNotAwaiting
	}
	return nil
}

// Complete 实现 Store
func (s *PGStore) Complete(ctx context.Context, id string, snapshot []byte, elapsed time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', snapshot = $2,
		       exec_elapsed_ms = exec_elapsed_ms + $3, finished_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'running'`,
		id, snapshot, elapsed.Milliseconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, StatusCompleted)
	}
	return nil
}

// Fail 实现 Store
func (s *PGStore) Fail(ctx context.Context, id string, snapshot []byte, kind workflow.FailureKind, msg string, elapsed time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'failed', snapshot = COALESCE($2, snapshot),
		       failure_kind = $3, error = $4, exec_elapsed_ms = exec_elapsed_ms + $5,
		       finished_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'running'`,
		id, snapshot, string(kind), msg, elapsed.Milliseconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, StatusFailed)
	}
	return nil
}

// Sweep 实现 Store
func (s *PGStore) Sweep(ctx context.Context, terminalBefore, suspendedBefore time.Time) (int, int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		 WHERE status IN ('completed', 'failed') AND finished_at < $1`, terminalBefore)
	if err != nil {
		return 0, 0, err
	}
	terminal := int(tag.RowsAffected())
	tag, err = s.pool.Exec(ctx, `
		DELETE FROM jobs
		 WHERE status = 'awaiting_approval' AND suspended_at < $1`, suspendedBefore)
	if err != nil {
		return terminal, 0, err
	}
	return terminal, int(tag.RowsAffected()), nil
}

// ReclaimStale 实现 Store：崩溃的 worker 留下的 running 行重新入队。
// 在途 job 的行在认领时刷过 updated_at，窗口够大时不会被误回收。
func (s *PGStore) ReclaimStale(ctx context.Context, updatedBefore time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET pending = TRUE, updated_at = now()
		 WHERE status = 'running' AND NOT pending AND updated_at < $1`, updatedBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// transitionError 区分未知 job 与非法转移
func (s *PGStore) transitionError(ctx context.Context, id string, to Status) error {
	j, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, j.Status, to)
}

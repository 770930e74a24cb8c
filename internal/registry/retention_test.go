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
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"career-platform/internal/workflow"
	"career-platform/pkg/log"
	"career-platform/pkg/metrics"
)

func newTestSweeper(t *testing.T, store Store, cfg RetentionConfig) *Sweeper {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return NewSweeper(store, cfg, logger)
}

// 驱逐被放弃的挂起 job 时必须同时归还 awaiting_approval 计数，
// 否则 gauge 永久虚高
func TestSweeper_EvictedSuspendedReleasesGauge(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	job := &Job{Snapshot: []byte(`{}`)}
	_ = s.Create(ctx, job)
	_, _ = s.ClaimNext(ctx)
	if err := s.Suspend(ctx, job.ID, []byte(`{}`), workflow.CheckpointCoordinatorPlan, nil, 0); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	// 挂起路径的计数由 Registry.runJob 完成，这里等价补上
	metrics.JobsAwaitingApproval.Inc()
	before := testutil.ToFloat64(metrics.JobsAwaitingApproval)

	sw := newTestSweeper(t, s, RetentionConfig{Suspended: time.Nanosecond})
	sw.SweepOnce(ctx)

	if _, err := s.Get(ctx, job.ID); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("abandoned suspended job not evicted: %v", err)
	}
	after := testutil.ToFloat64(metrics.JobsAwaitingApproval)
	if after != before-1 {
		t.Fatalf("gauge not released: before=%v after=%v", before, after)
	}
}

// 清扫同时回收失联 worker 留下的 running job
func TestSweeper_ReclaimsStaleRunning(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	job := &Job{Snapshot: []byte(`{}`)}
	_ = s.Create(ctx, job)
	if _, err := s.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	// worker 死亡一小时前的认领
	s.mu.Lock()
	s.byID[job.ID].UpdatedAt = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	sw := newTestSweeper(t, s, RetentionConfig{Stale: time.Minute})
	sw.SweepOnce(ctx)

	reclaimed, err := s.ClaimNext(ctx)
	if err != nil || reclaimed == nil || reclaimed.ID != job.ID {
		t.Fatalf("stale running job not requeued: job=%+v err=%v", reclaimed, err)
	}
}

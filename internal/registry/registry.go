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
	"career-platform/pkg/log"
	"career-platform/pkg/metrics"
	"career-platform/pkg/tracing"
)

// Config Registry 执行配置
type Config struct {
	// Workers 并发 worker 数，<=0 表示 1
	Workers int
	// PollInterval 无唤醒时的队列轮询间隔
	PollInterval time.Duration
	// WorkerID 指标标签用
	WorkerID string
}

// Registry job 的全生命周期所有者：提交、异步执行、状态轮询与检查点恢复。
// 提交立即返回，执行在 worker 池进行；挂起只是落盘快照，不占用 worker。
type Registry struct {
	store  Store
	engine *workflow.Engine
	wakeup WakeupQueue
	logger *log.Logger
	cfg    Config

	stopCh  chan struct{}
	wg      sync.WaitGroup
	limiter chan struct{}
}

// NewRegistry 创建 Registry
func NewRegistry(store Store, engine *workflow.Engine, wakeup WakeupQueue, logger *log.Logger, cfg Config) *Registry {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-0"
	}
	return &Registry{
		store:   store,
		engine:  engine,
		wakeup:  wakeup,
		logger:  logger,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		limiter: make(chan struct{}, cfg.Workers),
	}
}

// Submit 创建 job（queued）并安排异步执行，立即返回 job_id
func (r *Registry) Submit(ctx context.Context, userRequest, resumeRef string) (string, error) {
	st := workflow.NewState(userRequest, resumeRef)
	st.JobID = "job-" + uuid.NewString()
	snapshot, err := st.Snapshot()
	if err != nil {
		return "", fmt.Errorf("registry: 序列化初始状态failed: %w", err)
	}
	job := &Job{ID: st.JobID, Snapshot: snapshot}
	if err := r.store.Create(ctx, job); err != nil {
		return "", err
	}
	r.logger.Info("job 已提交", "job_id", job.ID)
	_ = r.wakeup.NotifyReady(ctx, job.ID)
	return job.ID, nil
}

// Status 返回 job 当前状态视图；未知 id 返回 ErrUnknownJob
func (r *Registry) Status(ctx context.Context, id string) (*StatusView, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildView(job), nil
}

// Approve 把检查点响应合入挂起的 job 并恢复异步执行，立即返回更新后的状态。
// job 未挂起、检查点不匹配或另一次恢复已在进行中时拒绝，job 状态不变。
func (r *Registry) Approve(ctx context.Context, id string, resp workflow.Resume) (*StatusView, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusAwaitingApproval {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrNotAwaiting, job.Status)
	}

	checkpoint := resp.CheckpointFor()
	if checkpoint == "" {
		return nil, fmt.Errorf("%w: 响应形状无法对应任何检查点", workflow.ErrCheckpointMismatch)
	}
	st, err := workflow.RestoreState(job.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("registry: 反序列化快照failed: %w", err)
	}
	if err := workflow.ApplyResume(st, checkpoint, resp); err != nil {
		return nil, err
	}
	snapshot, err := st.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("registry: 序列化快照failed: %w", err)
	}
	// CAS：并发 Approve 只有一个能从 awaiting_approval 转走，败者得到 ErrNotAwaiting
	if err := r.store.Resume(ctx, id, snapshot); err != nil {
		return nil, err
	}
	metrics.JobsAwaitingApproval.Dec()
	r.logger.Info("job 已恢复", "job_id", id, "checkpoint", string(checkpoint))
	_ = r.wakeup.NotifyReady(ctx, id)
	return r.Status(ctx, id)
}

// Start 启动 worker 池：认领待执行 job 并运行工作流引擎
func (r *Registry) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			case r.limiter <- struct{}{}:
				job, err := r.store.ClaimNext(ctx)
				if err != nil {
					r.logger.Error("认领 job failed", "err", err)
				}
				if job == nil {
					<-r.limiter
					// 无 job 时等唤醒，超时后回到轮询
					r.wakeup.Receive(ctx, r.cfg.PollInterval)
					continue
				}
				r.wg.Add(1)
				go func(j *Job) {
					defer r.wg.Done()
					defer func() { <-r.limiter }()
					r.runJob(context.Background(), j)
				}(job)
			}
		}
	}()
}

// Stop 停止认领新 job 并等待在途 job 执行到终态或挂起
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// runJob 执行一个已认领的 job 直到终止或挂起
func (r *Registry) runJob(ctx context.Context, job *Job) {
	logger := r.logger.WithJob(job.ID)
	metrics.WorkerBusy.WithLabelValues(r.cfg.WorkerID).Inc()
	defer metrics.WorkerBusy.WithLabelValues(r.cfg.WorkerID).Dec()

	st, err := workflow.RestoreState(job.Snapshot)
	if err != nil {
		logger.Error("反序列化快照failed", "err", err)
		_ = r.store.Fail(ctx, job.ID, nil, workflow.FailureRouting, "state snapshot corrupted: "+err.Error(), 0)
		metrics.JobTotal.WithLabelValues(string(StatusFailed)).Inc()
		return
	}

	start := time.Now()
	spanCtx, span := tracing.StartJobSpan(ctx, job.ID)
	susp, runErr := r.engine.Run(spanCtx, st)
	span.End()
	elapsed := time.Since(start)

	snapshot, serr := st.Snapshot()
	if serr != nil {
		logger.Error("序列化快照failed", "err", serr)
	}

	switch {
	case runErr != nil:
		kind := workflow.KindOf(runErr)
		logger.Error("job failed", "kind", string(kind), "err", runErr)
		if err := r.store.Fail(ctx, job.ID, snapshot, kind, runErr.Error(), elapsed); err != nil {
			logger.Error("写入失败状态failed", "err", err)
		}
		metrics.JobTotal.WithLabelValues(string(StatusFailed)).Inc()
	case susp != nil:
		logger.Info("job 挂起", "checkpoint", string(susp.Checkpoint))
		if err := r.store.Suspend(ctx, job.ID, snapshot, susp.Checkpoint, susp.Payload, elapsed); err != nil {
			logger.Error("写入挂起状态failed", "err", err)
			return
		}
		metrics.JobsAwaitingApproval.Inc()
	default:
		logger.Info("job 完成", "elapsed", elapsed.String())
		if err := r.store.Complete(ctx, job.ID, snapshot, elapsed); err != nil {
			logger.Error("写入完成状态failed", "err", err)
			return
		}
		metrics.JobTotal.WithLabelValues(string(StatusCompleted)).Inc()
		metrics.JobDuration.Observe((job.ExecElapsed + elapsed).Seconds())
	}
}

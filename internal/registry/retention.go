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
	"time"

	"career-platform/pkg/log"
	"career-platform/pkg/metrics"
)

// RetentionConfig 保留窗口配置。job 没有显式取消操作，
// 被放弃的挂起 job 与终态 job 都靠保留窗口驱逐。
type RetentionConfig struct {
	// Terminal 终态 job 的保留时长，供轮询方取回最终结果
	Terminal time.Duration
	// Suspended 挂起 job 等待人工输入的最长时长，超过视为放弃
	Suspended time.Duration
	// Stale running job 多久无更新视为 worker 已死，重新入队。
	// 必须大于单个 job 的最长执行时间，否则在途 job 会被重复执行
	Stale time.Duration
	// Interval 清扫间隔
	Interval time.Duration
}

// DefaultRetentionConfig 默认保留策略
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Terminal:  24 * time.Hour,
		Suspended: 72 * time.Hour,
		Stale:     30 * time.Minute,
		Interval:  time.Hour,
	}
}

// Sweeper 周期驱逐保留窗口外的 job
type Sweeper struct {
	store   Store
	cfg     RetentionConfig
	logger  *log.Logger
	stopCh  chan struct{}
	done    chan struct{}
	started bool
}

// NewSweeper 创建清扫器；零值配置回退默认
func NewSweeper(store Store, cfg RetentionConfig, logger *log.Logger) *Sweeper {
	def := DefaultRetentionConfig()
	if cfg.Terminal <= 0 {
		cfg.Terminal = def.Terminal
	}
	if cfg.Suspended <= 0 {
		cfg.Suspended = def.Suspended
	}
	if cfg.Stale <= 0 {
		cfg.Stale = def.Stale
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Sweeper{store: store, cfg: cfg, logger: logger, stopCh: make(chan struct{}), done: make(chan struct{})}
}

// Start 启动清扫循环
func (s *Sweeper) Start(ctx context.Context) {
	s.started = true
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Stop 停止清扫循环；未 Start 过时为空操作
func (s *Sweeper) Stop() {
	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.done
}

// SweepOnce 执行一次驱逐与孤儿回收
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now()
	terminal, suspended, err := s.store.Sweep(ctx, now.Add(-s.cfg.Terminal), now.Add(-s.cfg.Suspended))
	if err != nil {
		s.logger.Error("保留清扫failed", "err", err)
	} else if terminal+suspended > 0 {
		// 被驱逐的挂起 job 永远等不到 Approve，计数在这里归还
		metrics.JobsAwaitingApproval.Sub(float64(suspended))
		s.logger.Info("保留清扫完成", "terminal", terminal, "suspended", suspended)
	}

	reclaimed, err := s.store.ReclaimStale(ctx, now.Add(-s.cfg.Stale))
	if err != nil {
		s.logger.Error("孤儿 job 回收failed", "err", err)
		return
	}
	if reclaimed > 0 {
		s.logger.Info("孤儿 job 已重新入队", "reclaimed", reclaimed)
	}
}

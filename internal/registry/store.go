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
	"time"

	"career-platform/internal/workflow"
)

var (
	// ErrUnknownJob 未知 job_id，与"执行失败"严格区分
	ErrUnknownJob = errors.New("registry: unknown job")
	// ErrNotAwaiting job 未处于 awaiting_approval（含另一次 resume 已在执行中的竞态）
	ErrNotAwaiting = errors.New("registry: job not awaiting approval")
	// ErrInvalidTransition 非法状态转移，状态机缺陷的防御
	ErrInvalidTransition = errors.New("registry: invalid status transition")
)

// Store job 表的注入式存储抽象。同一 job_id 的所有变更必须原子，
// 核心因此无需任何进程级单例即可测试。
type Store interface {
	// Create 创建 queued job 并放入待执行队列
	Create(ctx context.Context, job *Job) error
	// Get 返回 job 副本；不存在返回 ErrUnknownJob
	Get(ctx context.Context, id string) (*Job, error)
	// ClaimNext 原子认领下一个待执行 job；fresh job 置为 running。
	// 无待执行 job 返回 nil, nil。
	ClaimNext(ctx context.Context) (*Job, error)
	// Suspend running→awaiting_approval，落盘快照并附上检查点信息
	Suspend(ctx context.Context, id string, snapshot []byte, checkpoint workflow.CheckpointName, payload map[string]any, elapsed time.Duration) error
	// Resume 原子 awaiting_approval→running：清检查点、存合并后的快照并重新入队。
	// 状态不是 awaiting_approval（含并发 resume 竞态的败者）返回 ErrNotAwaiting。
	Resume(ctx context.Context, id string, snapshot []byte) error
	// Complete running→completed，落盘最终快照
	Complete(ctx context.Context, id string, snapshot []byte, elapsed time.Duration) error
	// Fail running→failed，保留部分状态快照供诊断
	Fail(ctx context.Context, id string, snapshot []byte, kind workflow.FailureKind, msg string, elapsed time.Duration) error
	// Sweep 驱逐保留窗口之外的终态 job 与被放弃的挂起 job，分别返回两类驱逐数
	Sweep(ctx context.Context, terminalBefore, suspendedBefore time.Time) (terminal, suspended int, err error)
	// ReclaimStale 把 updatedBefore 之前最后更新、仍为 running 且不在待执行
	// 队列的 job 重新入队，返回回收数。worker 崩溃或提前退出会把 job 留在
	// running；窗口须大于单个 job 的最长执行时间，否则在途 job 会被重复执行。
	ReclaimStale(ctx context.Context, updatedBefore time.Time) (int, error)
}

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
)

// WakeupQueue 唤醒队列：Approve 把 job 重新入队后调用 NotifyReady，
// worker 在无 job 时优先在 Receive 上等待，实现事件驱动唤醒而非仅靠轮询。
type WakeupQueue interface {
	NotifyReady(ctx context.Context, jobID string) error
	// Receive 阻塞最多 timeout；有唤醒返回 (jobID, true)，超时返回 ("", false)
	Receive(ctx context.Context, timeout time.Duration) (jobID string, ok bool)
}

// WakeupQueueMem 带缓冲 channel 的内存实现；单进程内 API 与 worker 共享
// 同一实例时有效，多进程部署靠轮询兜底。
type WakeupQueueMem struct {
	ch chan string
}

// NewWakeupQueueMem 创建内存唤醒队列；bufSize<=0 使用 256
func NewWakeupQueueMem(bufSize int) *WakeupQueueMem {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &WakeupQueueMem{ch: make(chan string, bufSize)}
}

// NotifyReady 实现 WakeupQueue；非阻塞发送，队列满时丢弃以免阻塞 API
func (q *WakeupQueueMem) NotifyReady(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Receive 实现 WakeupQueue
func (q *WakeupQueueMem) Receive(ctx context.Context, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

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

package workflow

import (
	"context"
	"fmt"
	"time"

	"career-platform/pkg/log"
	"career-platform/pkg/metrics"
	"career-platform/pkg/tracing"
)

// Engine 条件路由状态机。节点表以 NodeID 为键，边由路由决策动态计算，
// 不是固定流水线。单个 job 的节点序列严格串行执行；跨 job 并发由上层
// Registry 的 worker 池负责。
type Engine struct {
	nodes       map[NodeID]Specialist
	nodeTimeout time.Duration
	logger      *log.Logger
}

// NewEngine 构建引擎；节点标识非法或重复时返回错误而不是运行期意外
func NewEngine(logger *log.Logger, nodeTimeout time.Duration, nodes ...Specialist) (*Engine, error) {
	table := make(map[NodeID]Specialist, len(nodes))
	for _, n := range nodes {
		id := n.ID()
		if !id.Valid() || id == NodeTerminal {
			return nil, fmt.Errorf("engine: 非法节点标识 %q", id)
		}
		if _, dup := table[id]; dup {
			return nil, fmt.Errorf("engine: 节点 %q 重复注册", id)
		}
		table[id] = n
	}
	return &Engine{nodes: table, nodeTimeout: nodeTimeout, logger: logger}, nil
}

// Run 从 st.NextAgent 开始逐节点执行，直到终止、挂起或失败。
// 返回非 nil Suspension 表示执行挂起于检查点，调用方应落盘快照并释放 worker；
// 返回错误表示 job 失败，st 保留已写入的部分状态供诊断。
// 同一 plan 修订内每个节点至多执行一次，防御路由缺陷导致的死循环。
func (e *Engine) Run(ctx context.Context, st *State) (*Suspension, error) {
	if st.NextAgent == "" {
		st.NextAgent = NodeCoordinator
	}

	ran := map[NodeID]int{}
	revision := 0
	if st.Plan != nil {
		revision = st.Plan.Revision
	}

	for {
		next := st.NextAgent
		if next == NodeTerminal {
			return nil, nil
		}
		node, ok := e.nodes[next]
		if !ok {
			return nil, &NodeFailure{Kind: FailureRouting, Node: next,
				Err: fmt.Errorf("next_agent 解析到节点表之外的节点")}
		}
		if st.Plan != nil && st.Plan.Revision != revision {
			// re-plan 后进入新修订，节点可重新执行
			revision = st.Plan.Revision
			ran = map[NodeID]int{}
		}
		if ran[next] > 0 {
			return nil, &NodeFailure{Kind: FailureRouting, Node: next,
				Err: fmt.Errorf("节点在同一 plan 修订内被路由了两次")}
		}

		e.logger.Info("执行节点", "node", next)
		start := time.Now()
		spanCtx, span := tracing.StartSpecialistSpan(ctx, st.JobID, string(next))
		delta, err := e.invoke(spanCtx, node, st)
		span.End()
		elapsed := time.Since(start)
		if next.IsSpecialist() {
			metrics.SpecialistDuration.WithLabelValues(string(next)).Observe(elapsed.Seconds())
		}
		if err != nil {
			kind := FailureSpecialist
			if next == NodeCoordinator {
				kind = FailurePlanning
			}
			if next.IsSpecialist() {
				metrics.SpecialistFailTotal.WithLabelValues(string(next)).Inc()
			}
			e.logger.Error("节点执行failed", "node", next, "kind", string(kind), "err", err)
			return nil, &NodeFailure{Kind: kind, Node: next, Err: err}
		}
		ran[next]++

		st.Apply(delta)
		if st.Checkpoint != "" {
			e.logger.Info("挂起于检查点", "node", next, "checkpoint", string(st.Checkpoint))
			return &Suspension{Checkpoint: st.Checkpoint, Payload: st.CheckpointPayload, Node: next}, nil
		}
		if !st.NextAgent.Valid() {
			return nil, &NodeFailure{Kind: FailureRouting, Node: next,
				Err: fmt.Errorf("节点返回非法 next_agent %q", st.NextAgent)}
		}
	}
}

// invoke 带超时执行单个节点。超时视为该节点失败，引擎不做自动重试。
func (e *Engine) invoke(ctx context.Context, sp Specialist, st *State) (Delta, error) {
	nctx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	type result struct {
		delta Delta
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		d, err := sp.Run(nctx, st)
		ch <- result{delta: d, err: err}
	}()

	select {
	case r := <-ch:
		return r.delta, r.err
	case <-nctx.Done():
		return Delta{}, fmt.Errorf("节点执行超时或被取消: %w", nctx.Err())
	}
}

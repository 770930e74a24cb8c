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
	"fmt"
	"strings"
)

// Plan coordinator 产出的执行计划。一经批准不可变；
// 拒绝后 re-plan 产生全新 Plan（Revision 递增），从不原地修补。
type Plan struct {
	PrimaryGoal    string   `json:"primary_goal"`
	ExecutionOrder []NodeID `json:"execution_order"`
	Reasoning      string   `json:"reasoning"`
	// Revision 计划修订号，初版为 1，每次 re-plan 递增
	Revision int `json:"revision,omitempty"`
}

// Validate 校验 execution_order 只包含已知 specialist 且无重复
func (p *Plan) Validate() error {
	seen := map[NodeID]bool{}
	for _, n := range p.ExecutionOrder {
		if !n.IsSpecialist() {
			return fmt.Errorf("plan: execution_order 含未知 specialist %q", n)
		}
		if seen[n] {
			return fmt.Errorf("plan: execution_order 含重复 specialist %q", n)
		}
		seen[n] = true
	}
	return nil
}

// Summary 渲染人类可读的计划摘要，供审批界面展示
func (p *Plan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "目标: %s\n", p.PrimaryGoal)
	if len(p.ExecutionOrder) == 0 {
		b.WriteString("执行顺序: (空，无需调用 specialist)\n")
	} else {
		b.WriteString("执行顺序:\n")
		for i, n := range p.ExecutionOrder {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, n)
		}
	}
	if p.Reasoning != "" {
		fmt.Fprintf(&b, "理由: %s\n", p.Reasoning)
	}
	return b.String()
}

// Route 路由函数：返回 execution_order 中第一个尚未完成的条目；
// 全部完成或计划为空时返回终止哨兵。对不变的输入幂等，re-plan 安全。
func Route(p *Plan, completed []NodeID) NodeID {
	if p == nil {
		return NodeTerminal
	}
	done := map[NodeID]bool{}
	for _, c := range completed {
		done[c] = true
	}
	for _, n := range p.ExecutionOrder {
		if !done[n] {
			return n
		}
	}
	return NodeTerminal
}

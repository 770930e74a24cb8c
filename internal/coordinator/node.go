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

package coordinator

import (
	"context"
	"fmt"

	"career-platform/internal/workflow"
)

// Node 把 Coordinator 接入工作流引擎的节点适配。requireApproval 为真且计划
// 非空时在 coordinator_plan 检查点挂起等待人工批准。
type Node struct {
	coord           Coordinator
	requireApproval bool
}

// NewNode 创建 coordinator 节点
func NewNode(coord Coordinator, requireApproval bool) *Node {
	return &Node{coord: coord, requireApproval: requireApproval}
}

// ID 实现 workflow.Specialist
func (n *Node) ID() workflow.NodeID { return workflow.NodeCoordinator }

// Run 实现 workflow.Specialist：规划（或 re-plan）并决定首个路由目标
func (n *Node) Run(ctx context.Context, st *workflow.State) (workflow.Delta, error) {
	req := PlanRequest{
		UserRequest:    st.UserRequest,
		ResumeProvided: st.ResumeReference != "" || st.ResumeContent != "",
		Feedback:       st.PlanFeedback,
		Previous:       st.Plan,
	}
	plan, err := n.coord.Plan(ctx, req)
	if err != nil {
		return workflow.Delta{}, err
	}
	plan.Revision = 1
	if st.Plan != nil {
		plan.Revision = st.Plan.Revision + 1
	}
	if err := plan.Validate(); err != nil {
		return workflow.Delta{}, err
	}

	// 反馈消费完即清空，避免下一轮 re-plan 误用
	noFeedback := ""
	d := workflow.Delta{
		Plan:         plan,
		PlanFeedback: &noFeedback,
		NextAgent:    workflow.Route(plan, st.CompletedTasks),
		Messages: []string{
			fmt.Sprintf("coordinator: 计划已生成 (修订 %d)：%s", plan.Revision, plan.PrimaryGoal),
		},
	}
	if n.requireApproval && len(plan.ExecutionOrder) > 0 {
		d.Checkpoint = workflow.CheckpointCoordinatorPlan
		d.CheckpointPayload = map[string]any{
			"primary_goal":    plan.PrimaryGoal,
			"execution_order": plan.ExecutionOrder,
			"reasoning":       plan.Reasoning,
			"revision":        plan.Revision,
			"plan_summary":    plan.Summary(),
		}
	}
	return d, nil
}

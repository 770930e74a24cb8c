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
	"errors"
	"fmt"
)

// CheckpointName 人工审批检查点名称
type CheckpointName string

const (
	// CheckpointCoordinatorPlan 执行任何 specialist 之前对整体计划的批准/拒绝
	CheckpointCoordinatorPlan CheckpointName = "coordinator_plan"
	// CheckpointJobRoleClarification 目标职位不明确时请求人工澄清
	CheckpointJobRoleClarification CheckpointName = "job_role_clarification"
)

// ErrCheckpointMismatch resume/approve 作用于未挂起的 job，
// 或挂起的检查点与响应不匹配。job 状态保持不变。
var ErrCheckpointMismatch = errors.New("workflow: checkpoint mismatch")

// Suspension 挂起快照：检查点名称、暴露给审批方的数据与发起挂起的节点。
// 挂起不占用任何执行线程，恢复依赖落盘的 State 快照。
type Suspension struct {
	Checkpoint CheckpointName `json:"checkpoint"`
	Payload    map[string]any `json:"payload,omitempty"`
	Node       NodeID         `json:"node"`
}

// Resume 外部审批方提交的检查点响应
type Resume struct {
	// Approved 仅 coordinator_plan 检查点使用
	Approved *bool `json:"approved,omitempty"`
	// Feedback 拒绝计划时的反馈文本，作为 re-plan 的额外输入
	Feedback string `json:"feedback,omitempty"`
	// ClarifiedRole 仅 job_role_clarification 检查点使用
	ClarifiedRole string `json:"clarified_role,omitempty"`
}

// CheckpointFor 根据响应形状推断其针对的检查点；无法推断返回空
func (r Resume) CheckpointFor() CheckpointName {
	if r.Approved != nil {
		return CheckpointCoordinatorPlan
	}
	if r.ClarifiedRole != "" {
		return CheckpointJobRoleClarification
	}
	return ""
}

// ApplyResume 校验并把检查点响应合入状态，清除挂起标记。
// 合并语义按检查点区分：
//   - coordinator_plan + approved: 清除挂起，引擎从 execution_order[0] 继续；
//   - coordinator_plan + 拒绝+feedback: 路由回 coordinator re-plan，
//     清空 completed_tasks；新计划必然再次产生审批检查点，绝不直接恢复执行；
//   - job_role_clarification + clarified_role: 将澄清值合入 target_role，
//     从发起澄清的节点恢复执行（挂起时 next_agent 仍指向该节点）。
func ApplyResume(st *State, checkpoint CheckpointName, resp Resume) error {
	if st.Checkpoint == "" {
		return fmt.Errorf("%w: job 未处于挂起状态", ErrCheckpointMismatch)
	}
	if st.Checkpoint != checkpoint {
		return fmt.Errorf("%w: 挂起于 %q, 收到针对 %q 的响应", ErrCheckpointMismatch, st.Checkpoint, checkpoint)
	}

	switch checkpoint {
	case CheckpointCoordinatorPlan:
		if resp.Approved == nil {
			return fmt.Errorf("%w: coordinator_plan 响应缺少 approved 字段", ErrCheckpointMismatch)
		}
		if *resp.Approved {
			st.Messages = append(st.Messages, "human: 计划已批准")
			st.NextAgent = Route(st.Plan, st.CompletedTasks)
		} else {
			st.Messages = append(st.Messages, fmt.Sprintf("human: 计划被拒绝，反馈: %s", resp.Feedback))
			st.PlanFeedback = resp.Feedback
			st.CompletedTasks = []NodeID{}
			st.NextAgent = NodeCoordinator
		}
	case CheckpointJobRoleClarification:
		if resp.ClarifiedRole == "" {
			return fmt.Errorf("%w: job_role_clarification 响应缺少 clarified_role 字段", ErrCheckpointMismatch)
		}
		st.TargetRole = resp.ClarifiedRole
		st.Messages = append(st.Messages, fmt.Sprintf("human: 目标职位澄清为 %q", resp.ClarifiedRole))
		// next_agent 在挂起时仍指向发起澄清的节点，无需改写
	default:
		return fmt.Errorf("%w: 未知检查点 %q", ErrCheckpointMismatch, checkpoint)
	}

	st.Checkpoint = ""
	st.CheckpointPayload = nil
	return nil
}

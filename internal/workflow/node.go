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

// Package workflow 实现多智能体求职工作流的共享状态、条件路由状态机与
// 人工审批（HITL）挂起/恢复协议。节点集合是封闭枚举，非法路由在构图阶段
// 即可发现，而不是运行时的意外。
package workflow

import "context"

// NodeID 工作流节点标识，封闭枚举：coordinator、四个 specialist 与终止哨兵
type NodeID string

const (
	// NodeCoordinator 规划与路由权威节点
	NodeCoordinator NodeID = "coordinator"
	// NodeResumeAnalyst 简历分析 specialist
	NodeResumeAnalyst NodeID = "resume_analyst"
	// NodeJobResearcher 职位调研 specialist
	NodeJobResearcher NodeID = "job_researcher"
	// NodeCVCreator CV 生成 specialist
	NodeCVCreator NodeID = "cv_creator"
	// NodeJobMatcher 职位匹配 specialist
	NodeJobMatcher NodeID = "job_matcher"
	// NodeTerminal 终止哨兵，路由至此表示工作流结束
	NodeTerminal NodeID = "END"
)

// SpecialistNodes 返回全部 specialist 节点（不含 coordinator 与终止哨兵）
func SpecialistNodes() []NodeID {
	return []NodeID{NodeResumeAnalyst, NodeJobResearcher, NodeCVCreator, NodeJobMatcher}
}

// IsSpecialist 判断 id 是否为已知 specialist
func (n NodeID) IsSpecialist() bool {
	switch n {
	case NodeResumeAnalyst, NodeJobResearcher, NodeCVCreator, NodeJobMatcher:
		return true
	}
	return false
}

// Valid 判断 id 是否属于封闭节点集合
func (n NodeID) Valid() bool {
	return n == NodeCoordinator || n == NodeTerminal || n.IsSpecialist()
}

// ParseNodeID 将自由文本解析为 NodeID；未知名称返回 false
func ParseNodeID(s string) (NodeID, bool) {
	id := NodeID(s)
	if id.Valid() {
		return id, true
	}
	return "", false
}

// Specialist 节点统一契约：消费完整共享状态，返回部分更新。
// 同一 specialist 只写自己声明的结果槽位，内部可做阻塞 I/O（模型调用、外部检索），
// 必须响应 ctx 取消。
type Specialist interface {
	// ID 节点标识，必须是封闭枚举成员
	ID() NodeID
	// Run 执行节点逻辑并返回状态增量；错误会导致整个 job 失败
	Run(ctx context.Context, st *State) (Delta, error)
}

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

import "encoding/json"

// State 单次执行贯穿所有节点的共享状态。可完整 JSON 序列化：
// 挂起时落盘的快照必须是自包含值，另一进程反序列化后可原样恢复执行。
type State struct {
	// JobID 所属 job 标识，提交时写入，快照自带归属
	JobID string `json:"job_id,omitempty"`
	// Messages 各节点产生的人类可读时间线，仅追加，顺序即执行顺序
	Messages []string `json:"messages"`
	// UserRequest 创建时写入的原始请求，之后不可变
	UserRequest string `json:"user_request"`
	// ResumeReference 用户提供的简历文件引用，最多写一次
	ResumeReference string `json:"resume_reference,omitempty"`
	// ResumeContent 从简历文件提取的纯文本
	ResumeContent string `json:"resume_content,omitempty"`

	// 结果槽位：每个槽位在一个 plan 修订内只有唯一写者，未写入表示"尚未产出"
	ResumeAnalysis    map[string]any   `json:"resume_analysis,omitempty"`
	JobMarketData     map[string]any   `json:"job_market_data,omitempty"`
	JobListings       []map[string]any `json:"job_listings,omitempty"`
	CVArtifactRef     string           `json:"cv_artifact_reference,omitempty"`
	ComparisonResults map[string]any   `json:"comparison_results,omitempty"`

	// Plan coordinator 产出的执行计划；re-plan 时整体替换，从不原地修补
	Plan *Plan `json:"coordinator_plan,omitempty"`
	// PlanFeedback 上一轮计划被拒绝时的反馈，coordinator re-plan 的额外输入
	PlanFeedback string `json:"plan_feedback,omitempty"`
	// CompletedTasks 本次运行已执行完成的 specialist 集合（保持完成顺序）
	CompletedTasks []NodeID `json:"completed_tasks"`
	// NextAgent 路由决策：下一个节点或终止哨兵
	NextAgent NodeID `json:"next_agent,omitempty"`
	// TargetRole 目标职位，来自简历分析或人工澄清
	TargetRole string `json:"target_role,omitempty"`

	// Checkpoint 非空时引擎必须在当前节点后挂起等待外部输入；恢复时清空
	Checkpoint CheckpointName `json:"hitl_checkpoint,omitempty"`
	// CheckpointPayload 随挂起暴露给外部审批方的数据
	CheckpointPayload map[string]any `json:"hitl_payload,omitempty"`
}

// NewState 构造初始状态
func NewState(userRequest, resumeRef string) *State {
	return &State{
		UserRequest:     userRequest,
		ResumeReference: resumeRef,
		Messages:        []string{},
		CompletedTasks:  []NodeID{},
	}
}

// Delta 节点返回的部分状态更新。nil/零值字段表示"不改动"；
// Messages 追加、Completed 并入集合，其余槽位整体覆盖。
type Delta struct {
	Messages          []string
	ResumeContent     string
	ResumeAnalysis    map[string]any
	JobMarketData     map[string]any
	JobListings       []map[string]any
	CVArtifactRef     string
	ComparisonResults map[string]any
	Plan              *Plan
	PlanFeedback      *string
	TargetRole        string
	NextAgent         NodeID
	Completed         []NodeID
	// ResetCompleted re-plan 时清空已完成集合，使受影响的 specialist 可重跑
	ResetCompleted    bool
	Checkpoint        CheckpointName
	CheckpointPayload map[string]any
}

// Apply 将节点增量合并进共享状态。后写覆盖先写，messages 只追加不覆盖。
func (s *State) Apply(d Delta) {
	s.Messages = append(s.Messages, d.Messages...)
	if d.ResumeContent != "" {
		s.ResumeContent = d.ResumeContent
	}
	if d.ResumeAnalysis != nil {
		s.ResumeAnalysis = d.ResumeAnalysis
	}
	if d.JobMarketData != nil {
		s.JobMarketData = d.JobMarketData
	}
	if d.JobListings != nil {
		s.JobListings = d.JobListings
	}
	if d.CVArtifactRef != "" {
		s.CVArtifactRef = d.CVArtifactRef
	}
	if d.ComparisonResults != nil {
		s.ComparisonResults = d.ComparisonResults
	}
	if d.Plan != nil {
		s.Plan = d.Plan
	}
	if d.PlanFeedback != nil {
		s.PlanFeedback = *d.PlanFeedback
	}
	if d.TargetRole != "" {
		s.TargetRole = d.TargetRole
	}
	if d.ResetCompleted {
		s.CompletedTasks = []NodeID{}
	}
	for _, n := range d.Completed {
		s.markCompleted(n)
	}
	if d.NextAgent != "" {
		s.NextAgent = d.NextAgent
	}
	if d.Checkpoint != "" {
		s.Checkpoint = d.Checkpoint
		s.CheckpointPayload = d.CheckpointPayload
	}
}

// markCompleted 并入已完成集合，保持完成顺序且不重复
func (s *State) markCompleted(n NodeID) {
	for _, c := range s.CompletedTasks {
		if c == n {
			return
		}
	}
	s.CompletedTasks = append(s.CompletedTasks, n)
}

// IsCompleted 判断 specialist 是否已在本轮计划中执行完成
func (s *State) IsCompleted(n NodeID) bool {
	for _, c := range s.CompletedTasks {
		if c == n {
			return true
		}
	}
	return false
}

// Snapshot 序列化为自包含 JSON 快照
func (s *State) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// RestoreState 从快照恢复状态
func RestoreState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Messages == nil {
		st.Messages = []string{}
	}
	if st.CompletedTasks == nil {
		st.CompletedTasks = []NodeID{}
	}
	return &st, nil
}

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
	"time"

	"career-platform/internal/workflow"
)

// StatusView job 的对外状态视图。Result 仅在 completed 时非空，
// Checkpoint/Payload 仅在 awaiting_approval 时非空，Error 仅在 failed 时非空。
// 失败只暴露分类与人类可读消息，不泄露内部状态。
type StatusView struct {
	JobID             string                  `json:"job_id"`
	Status            Status                  `json:"status"`
	Checkpoint        workflow.CheckpointName `json:"checkpoint,omitempty"`
	CheckpointPayload map[string]any          `json:"payload,omitempty"`
	Result            map[string]any          `json:"result,omitempty"`
	FailureKind       workflow.FailureKind    `json:"failure_kind,omitempty"`
	Error             string                  `json:"error,omitempty"`
	ExecutionSeconds  float64                 `json:"execution_seconds,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// buildView 从 Job 构建对外视图
func buildView(job *Job) *StatusView {
	v := &StatusView{
		JobID:            job.ID,
		Status:           job.Status,
		ExecutionSeconds: job.ExecElapsed.Seconds(),
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
	switch job.Status {
	case StatusAwaitingApproval:
		v.Checkpoint = job.Checkpoint
		v.CheckpointPayload = job.CheckpointPayload
	case StatusCompleted:
		v.Result = buildResult(job.Snapshot)
	case StatusFailed:
		v.FailureKind = job.FailureKind
		v.Error = job.Error
	}
	return v
}

// buildResult 从最终快照提取结果槽位与时间线
func buildResult(snapshot []byte) map[string]any {
	st, err := workflow.RestoreState(snapshot)
	if err != nil {
		return map[string]any{"summary": "结果快照不可读"}
	}
	result := map[string]any{
		"completed_tasks": st.CompletedTasks,
		"messages":        st.Messages,
		"summary":         summaryOf(st),
	}
	if st.ResumeAnalysis != nil {
		result["resume_analysis"] = st.ResumeAnalysis
	}
	if st.JobMarketData != nil {
		result["job_market_data"] = st.JobMarketData
	}
	if st.JobListings != nil {
		result["job_listings"] = st.JobListings
	}
	if st.CVArtifactRef != "" {
		result["cv_artifact_reference"] = st.CVArtifactRef
	}
	if st.ComparisonResults != nil {
		result["comparison_results"] = st.ComparisonResults
	}
	if st.TargetRole != "" {
		result["target_role"] = st.TargetRole
	}
	return result
}

// summaryOf 最后一条时间线消息作为人类可读摘要
func summaryOf(st *workflow.State) string {
	if len(st.Messages) == 0 {
		return "工作流完成，无 specialist 执行"
	}
	return st.Messages[len(st.Messages)-1]
}

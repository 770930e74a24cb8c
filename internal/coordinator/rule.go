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
	"strings"

	"career-platform/internal/workflow"
)

// RuleCoordinator 基于关键词的规划器：无 LLM 时的实现，
// 也是 LLM 输出无法解析时的回退。依赖规则：cv_creator 与 job_matcher
// 需要 resume_analysis，job_matcher 还需要 job_listings。
type RuleCoordinator struct{}

// NewRuleCoordinator 创建规则规划器
func NewRuleCoordinator() *RuleCoordinator {
	return &RuleCoordinator{}
}

// Plan 实现 Coordinator
func (r *RuleCoordinator) Plan(_ context.Context, req PlanRequest) (*workflow.Plan, error) {
	request := strings.ToLower(strings.TrimSpace(req.UserRequest))
	if request == "" {
		return &workflow.Plan{
			PrimaryGoal:    "无可执行请求",
			ExecutionOrder: []workflow.NodeID{},
			Reasoning:      "请求为空，无需调用 specialist",
		}, nil
	}

	wantAnalysis := req.ResumeProvided &&
		(strings.Contains(request, "analy") || strings.Contains(request, "resume") ||
			strings.Contains(request, "简历"))
	wantResearch := strings.Contains(request, "market") || strings.Contains(request, "research") ||
		strings.Contains(request, "job") || strings.Contains(request, "职位") ||
		strings.Contains(request, "求职")
	wantCV := strings.Contains(request, "cv") || strings.Contains(request, "cover letter") ||
		strings.Contains(request, "create")
	wantMatch := strings.Contains(request, "match") || strings.Contains(request, "compare") ||
		strings.Contains(request, "fit") || strings.Contains(request, "匹配")

	// cv/match 隐含需要简历分析；match 隐含需要职位列表
	if (wantCV || wantMatch) && req.ResumeProvided {
		wantAnalysis = true
	}
	if wantMatch {
		wantResearch = true
	}
	if !wantAnalysis && !wantResearch && !wantCV && !wantMatch {
		// 无法识别意图时默认做职位调研
		wantResearch = true
	}

	order := []workflow.NodeID{}
	if wantAnalysis {
		order = append(order, workflow.NodeResumeAnalyst)
	}
	if wantResearch {
		order = append(order, workflow.NodeJobResearcher)
	}
	if wantCV && req.ResumeProvided {
		order = append(order, workflow.NodeCVCreator)
	}
	if wantMatch && req.ResumeProvided {
		order = append(order, workflow.NodeJobMatcher)
	}

	return &workflow.Plan{
		PrimaryGoal:    req.UserRequest,
		ExecutionOrder: order,
		Reasoning:      "基于关键词匹配与依赖规则生成的计划",
	}, nil
}

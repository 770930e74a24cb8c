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
	"encoding/json"
	"fmt"
	"strings"

	"career-platform/internal/model/llm"
	"career-platform/internal/workflow"
)

const planSystemPrompt = `You are the Coordinator in a multi-agent job hunting system.
Analyze the user request and create an execution plan using the available specialists.

AVAILABLE SPECIALISTS:
- resume_analyst: analyzes resumes for strengths, weaknesses and improvements (required by most other specialists)
- job_researcher: searches and analyzes job markets and opportunities
- cv_creator: generates a professional, tailored CV (requires resume_analyst)
- job_matcher: compares the resume against specific job listings (requires resume_analyst and job_researcher)

DEPENDENCY RULES:
- job research without a resume: only job_researcher
- job research with a resume: resume_analyst first, then job_researcher
- CV creation: resume_analyst first, then cv_creator
- job matching: resume_analyst, then job_researcher, then job_matcher
- market research only: job_researcher alone

Respond with JSON only, no other text:
{"primary_goal":"...","execution_order":["specialist", ...],"reasoning":"..."}
If the request is empty or nothing applies, return an empty execution_order.`

// llmPlan LLM 原始输出的计划形状
type llmPlan struct {
	PrimaryGoal    string   `json:"primary_goal"`
	ExecutionOrder []string `json:"execution_order"`
	Reasoning      string   `json:"reasoning"`
}

// LLMCoordinator 基于 LLM 的规划器。Fallback 非 nil 时，LLM 输出无法解析为
// JSON 会回退到关键词规划；Fallback 为 nil 时直接报错（规划失败）。
type LLMCoordinator struct {
	client   llm.Client
	fallback *RuleCoordinator
}

// NewLLMCoordinator 创建基于 LLM 的 Coordinator
func NewLLMCoordinator(client llm.Client, fallback *RuleCoordinator) *LLMCoordinator {
	return &LLMCoordinator{client: client, fallback: fallback}
}

// Plan 实现 Coordinator
func (c *LLMCoordinator) Plan(ctx context.Context, req PlanRequest) (*workflow.Plan, error) {
	if strings.TrimSpace(req.UserRequest) == "" {
		return &workflow.Plan{
			PrimaryGoal:    "无可执行请求",
			ExecutionOrder: []workflow.NodeID{},
			Reasoning:      "请求为空，无需调用 specialist",
		}, nil
	}
	if c.client == nil {
		if c.fallback != nil {
			return c.fallback.Plan(ctx, req)
		}
		return nil, fmt.Errorf("coordinator: 未配置 LLM")
	}

	resume := "None"
	if req.ResumeProvided {
		resume = "provided"
	}
	user := fmt.Sprintf("USER REQUEST: %s\nRESUME: %s", req.UserRequest, resume)
	if req.Feedback != "" {
		prev := "(none)"
		if req.Previous != nil {
			prev = req.Previous.Summary()
		}
		user += fmt.Sprintf("\n\nThe previous plan was REJECTED by the user. Produce a revised plan.\nPREVIOUS PLAN:\n%s\nUSER FEEDBACK: %s", prev, req.Feedback)
	}

	messages := []llm.Message{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: user},
	}
	opts := llm.GenerateOptions{MaxTokens: 1024, Temperature: 0.2}
	reply, err := c.client.ChatWithContext(ctx, messages, opts)
	if err != nil {
		return nil, fmt.Errorf("coordinator LLM 调用失败: %w", err)
	}

	reply = strings.TrimSpace(reply)
	// 提取 JSON（可能被 markdown 包裹）
	if idx := strings.Index(reply, "{"); idx >= 0 {
		if end := strings.LastIndex(reply, "}"); end > idx {
			reply = reply[idx : end+1]
		}
	}
	var raw llmPlan
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		if c.fallback != nil {
			return c.fallback.Plan(ctx, req)
		}
		return nil, fmt.Errorf("解析 coordinator 计划 JSON 失败: %w", err)
	}

	order := make([]workflow.NodeID, 0, len(raw.ExecutionOrder))
	for _, name := range raw.ExecutionOrder {
		id, ok := workflow.ParseNodeID(name)
		if !ok || !id.IsSpecialist() {
			return nil, fmt.Errorf("coordinator 计划含未知 specialist %q", name)
		}
		order = append(order, id)
	}
	return &workflow.Plan{
		PrimaryGoal:    raw.PrimaryGoal,
		ExecutionOrder: order,
		Reasoning:      raw.Reasoning,
	}, nil
}

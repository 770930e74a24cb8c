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

package specialist

import (
	"context"
	"encoding/json"
	"fmt"

	"career-platform/internal/model/llm"
	"career-platform/internal/resume"
	"career-platform/internal/workflow"
)

const analystPrompt = `You are an expert HR manager and recruiter with 25 years of experience.
Analyze this resume against real-world hiring standards.

RESUME CONTENT:
%s

Provide detailed analysis as JSON only:
{
  "overall_score": 85,
  "resume_strengths": ["..."],
  "resume_weaknesses": ["..."],
  "keyword_optimization": ["..."],
  "specific_improvements": ["..."],
  "target_roles": ["primary job roles based on experience"],
  "career_level": "entry/mid/senior/executive",
  "industry_focus": "primary industry based on experience",
  "ats_compatibility": {"score": 90, "issues": ["..."], "recommendations": ["..."]},
  "next_steps": ["..."]
}
Be thorough, specific and actionable.`

// ResumeAnalyst 简历分析 specialist：提取简历文本，产出 resume_analysis 槽位
type ResumeAnalyst struct {
	client llm.Client
	parser *resume.Parser
}

// NewResumeAnalyst 创建简历分析 specialist
func NewResumeAnalyst(client llm.Client, parser *resume.Parser) *ResumeAnalyst {
	return &ResumeAnalyst{client: client, parser: parser}
}

// ID 实现 workflow.Specialist
func (a *ResumeAnalyst) ID() workflow.NodeID { return workflow.NodeResumeAnalyst }

// Run 实现 workflow.Specialist
func (a *ResumeAnalyst) Run(ctx context.Context, st *workflow.State) (workflow.Delta, error) {
	content := st.ResumeContent
	if content == "" {
		if st.ResumeReference == "" {
			return workflow.Delta{}, fmt.Errorf("resume_analyst: 未提供简历文件")
		}
		var err error
		content, err = a.parser.Parse(st.ResumeReference)
		if err != nil {
			return workflow.Delta{}, fmt.Errorf("resume_analyst: %w", err)
		}
	}

	reply, err := a.client.ChatWithContext(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(analystPrompt, content)},
	}, llm.GenerateOptions{MaxTokens: 2048, Temperature: 0.3})
	if err != nil {
		return workflow.Delta{}, fmt.Errorf("resume_analyst LLM 调用失败: %w", err)
	}

	var analysis map[string]any
	if err := json.Unmarshal([]byte(extractJSON(reply)), &analysis); err != nil {
		return workflow.Delta{}, fmt.Errorf("解析简历分析 JSON 失败: %w", err)
	}

	d := workflow.Delta{
		ResumeContent:  content,
		ResumeAnalysis: analysis,
		TargetRole:     primaryRole(analysis),
		Messages: []string{fmt.Sprintf("resume_analyst: 分析完成，总分 %v，目标职位 %s",
			analysis["overall_score"], primaryRole(analysis))},
	}
	return finish(st, a.ID(), d), nil
}

// primaryRole 从分析结果中取首个目标职位
func primaryRole(analysis map[string]any) string {
	for _, key := range []string{"target_roles", "possible_jobs"} {
		if roles, ok := analysis[key].([]any); ok && len(roles) > 0 {
			if s, ok := roles[0].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

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
	"career-platform/internal/workflow"
)

const matchPrompt = `You are an expert job matching specialist with 20+ years of recruitment experience.
Perform a resume-to-job fit analysis against real-world hiring criteria.

RESUME:
%s

JOB POSTING:
Title: %s
Company: %s
Location: %s
Description: %s

Respond with JSON only:
{
  "match_percentage": 85,
  "fit_level": "excellent/good/fair/poor",
  "matching_skills": ["..."],
  "missing_skills": ["..."],
  "strengths_for_role": ["..."],
  "application_strategy": ["..."],
  "likelihood_of_success": "high/medium/low with reasoning"
}
Be brutally honest and specific.`

// maxMatchedListings 逐条做 LLM 匹配的职位上限
const maxMatchedListings = 3

// JobMatcher 职位匹配 specialist：依赖 resume_analysis 与 job_listings，
// 对排名靠前的职位逐条做匹配分析，产出 comparison_results。
type JobMatcher struct {
	client llm.Client
}

// NewJobMatcher 创建职位匹配 specialist
func NewJobMatcher(client llm.Client) *JobMatcher {
	return &JobMatcher{client: client}
}

// ID 实现 workflow.Specialist
func (m *JobMatcher) ID() workflow.NodeID { return workflow.NodeJobMatcher }

// Run 实现 workflow.Specialist
func (m *JobMatcher) Run(ctx context.Context, st *workflow.State) (workflow.Delta, error) {
	if st.ResumeContent == "" {
		return workflow.Delta{}, fmt.Errorf("job_matcher: 缺少简历内容，resume_analyst 必须先执行")
	}
	if len(st.JobListings) == 0 {
		return workflow.Delta{}, fmt.Errorf("job_matcher: 缺少职位列表，job_researcher 必须先执行")
	}

	listings := st.JobListings
	if len(listings) > maxMatchedListings {
		listings = listings[:maxMatchedListings]
	}

	matches := make([]map[string]any, 0, len(listings))
	for _, job := range listings {
		reply, err := m.client.ChatWithContext(ctx, []llm.Message{
			{Role: "system", Content: fmt.Sprintf(matchPrompt,
				st.ResumeContent, str(job["title"]), str(job["company"]),
				str(job["location"]), str(job["description"]))},
		}, llm.GenerateOptions{MaxTokens: 2048, Temperature: 0.2})
		if err != nil {
			return workflow.Delta{}, fmt.Errorf("job_matcher LLM 调用失败: %w", err)
		}
		var match map[string]any
		if err := json.Unmarshal([]byte(extractJSON(reply)), &match); err != nil {
			// 单条解析失败跳过，与检索结果质量问题同类
			continue
		}
		match["job_title"] = job["title"]
		match["company"] = job["company"]
		matches = append(matches, match)
	}
	if len(matches) == 0 {
		return workflow.Delta{}, fmt.Errorf("job_matcher: 所有职位的匹配分析均解析失败")
	}

	var sum float64
	best := matches[0]
	highCount := 0
	for _, r := range matches {
		p := matchPercent(r)
		sum += p
		if p >= 70 {
			highCount++
		}
		if p > matchPercent(best) {
			best = r
		}
	}
	avg := sum / float64(len(matches))

	d := workflow.Delta{
		ComparisonResults: map[string]any{
			"matches":          matches,
			"jobs_analyzed":    len(matches),
			"average_match":    avg,
			"best_match":       best,
			"high_match_count": highCount,
		},
		Messages: []string{fmt.Sprintf("job_matcher: 匹配完成，分析 %d 个职位，平均匹配度 %.1f%%，最佳 %v (%v)",
			len(matches), avg, best["job_title"], best["company"])},
	}
	return finish(st, m.ID(), d), nil
}

func matchPercent(m map[string]any) float64 {
	if v, ok := m["match_percentage"].(float64); ok {
		return v
	}
	return 0
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

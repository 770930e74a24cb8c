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
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"career-platform/internal/model/llm"
	"career-platform/internal/workflow"
)

const roleExtractionPrompt = `Extract the specific job role from this user request.
If no explicit role is named, infer one from what the user is asking about.
Be specific and return a real job title such as "software engineer" or "data scientist".

USER REQUEST: %s

If you cannot infer a specific role, return exactly "UNCLEAR".
Return only the job role name or "UNCLEAR".`

// JobResearcher 职位调研 specialist：确定目标职位、检索职位并产出市场分析。
// 目标职位依次取：人工澄清值 → 简历分析的 target_roles → LLM 从请求中提取；
// 提取结果不明确时在 job_role_clarification 检查点挂起等待人工澄清。
type JobResearcher struct {
	client  llm.Client
	search  SearchClient
	maxJobs int
}

// NewJobResearcher 创建职位调研 specialist；maxJobs<=0 使用默认 15
func NewJobResearcher(client llm.Client, search SearchClient, maxJobs int) *JobResearcher {
	if maxJobs <= 0 {
		maxJobs = 15
	}
	return &JobResearcher{client: client, search: search, maxJobs: maxJobs}
}

// ID 实现 workflow.Specialist
func (r *JobResearcher) ID() workflow.NodeID { return workflow.NodeJobResearcher }

// Run 实现 workflow.Specialist
func (r *JobResearcher) Run(ctx context.Context, st *workflow.State) (workflow.Delta, error) {
	role, suspend, err := r.resolveRole(ctx, st)
	if err != nil {
		return workflow.Delta{}, err
	}
	if suspend != nil {
		return *suspend, nil
	}

	jobs, err := r.search.Search(ctx, role, "remote", r.maxJobs)
	if err != nil {
		return workflow.Delta{}, fmt.Errorf("job_researcher: %w", err)
	}
	if len(jobs) == 0 {
		d := workflow.Delta{
			JobMarketData: map[string]any{"role_researched": role, "total_jobs_found": 0},
			Messages:      []string{fmt.Sprintf("job_researcher: 未找到 %q 相关职位", role)},
		}
		return finish(st, r.ID(), d), nil
	}

	market := analyzeMarket(role, jobs, st.ResumeAnalysis != nil)
	listings := make([]map[string]any, 0, 10)
	for _, j := range jobs {
		if len(listings) == 10 {
			break
		}
		desc := truncateDescription(j.Description, 300)
		listings = append(listings, map[string]any{
			"title":       j.Title,
			"company":     j.Company,
			"location":    j.Location,
			"description": desc,
			"apply_url":   j.ApplyURL,
		})
	}

	d := workflow.Delta{
		JobMarketData: market,
		JobListings:   listings,
		TargetRole:    role,
		Messages: []string{fmt.Sprintf("job_researcher: 调研完成，职位 %q 共 %d 个机会，需求 %v",
			role, len(jobs), market["market_insights"].(map[string]any)["demand_level"])},
	}
	return finish(st, r.ID(), d), nil
}

// resolveRole 确定调研的目标职位；返回非 nil 的 Delta 表示需要挂起等待澄清
func (r *JobResearcher) resolveRole(ctx context.Context, st *workflow.State) (string, *workflow.Delta, error) {
	if st.TargetRole != "" {
		return st.TargetRole, nil, nil
	}
	if role := primaryRole(st.ResumeAnalysis); role != "" {
		return role, nil, nil
	}

	reply, err := r.client.ChatWithContext(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(roleExtractionPrompt, st.UserRequest)},
	}, llm.GenerateOptions{MaxTokens: 64, Temperature: 0})
	if err != nil {
		return "", nil, fmt.Errorf("job_researcher 角色提取失败: %w", err)
	}
	role := strings.ToLower(strings.TrimSpace(reply))
	if role == "unclear" || len(role) < 3 {
		// 挂起等待人工澄清；next_agent 保持指向本节点，恢复后重跑
		d := workflow.Delta{
			NextAgent:  workflow.NodeJobResearcher,
			Checkpoint: workflow.CheckpointJobRoleClarification,
			CheckpointPayload: map[string]any{
				"user_request":   st.UserRequest,
				"extracted_role": reply,
				"clarification_message": fmt.Sprintf(
					"无法从请求 %q 中确定目标职位，请给出具体的职位名称（如 software engineer、marketing manager）。",
					st.UserRequest),
			},
			Messages: []string{"job_researcher: 目标职位不明确，等待人工澄清"},
		}
		return "", &d, nil
	}
	return role, nil, nil
}

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "with": true,
	"you": true, "will": true, "have": true, "this": true, "that": true,
	"from": true, "they": true, "been": true, "their": true, "which": true,
}

// analyzeMarket 基于职位列表做市场分析：公司/地区分布、高频关键词与需求指标
func analyzeMarket(role string, jobs []Listing, resumeBased bool) map[string]any {
	companies := map[string]int{}
	locations := map[string]int{}
	wordFreq := map[string]int{}
	remote := 0
	withSalary := 0

	for _, j := range jobs {
		companies[j.Company]++
		locations[j.Location]++
		if strings.Contains(strings.ToLower(j.Location), "remote") {
			remote++
		}
		if j.Salary != "" {
			withSalary++
		}
		for _, w := range wordRe.FindAllString(strings.ToLower(j.Description), -1) {
			if len(w) > 3 && !stopWords[w] {
				wordFreq[w]++
			}
		}
	}

	demand := "Low"
	if len(jobs) > 10 {
		demand = "High"
	} else if len(jobs) > 5 {
		demand = "Medium"
	}

	mode := "autonomous"
	if resumeBased {
		mode = "resume_based"
	}

	return map[string]any{
		"role_researched":    role,
		"total_jobs_found":   len(jobs),
		"top_companies":      topCounts(companies, 8),
		"popular_locations":  topCounts(locations, 8),
		"in_demand_keywords": topKeys(wordFreq, 15),
		"market_insights": map[string]any{
			"demand_level":        demand,
			"remote_percentage":   percent(remote, len(jobs)),
			"salary_transparency": percent(withSalary, len(jobs)),
		},
		"analysis_mode": mode,
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func topCounts(m map[string]int, n int) []map[string]any {
	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(m))
	for k, v := range m {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make([]map[string]any, len(all))
	for i, e := range all {
		out[i] = map[string]any{"name": e.k, "count": e.v}
	}
	return out
}

func topKeys(m map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(m))
	for k, v := range m {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.k
	}
	return out
}

// truncateDescription 按字节上限截断职位描述，退到 rune 边界避免切出无效 UTF-8
func truncateDescription(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

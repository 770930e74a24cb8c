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

	"github.com/google/uuid"

	"career-platform/internal/model/llm"
	"career-platform/internal/workflow"
)

const cvPrompt = `You are an expert CV writer with 25 years of experience helping professionals get hired.
Rewrite this candidate's resume into an ATS-optimized CV.

ORIGINAL RESUME:
%s

ANALYSIS TO IMPLEMENT:
%s

MARKET INTELLIGENCE:
%s

Instructions: rewrite completely, implement all analysis suggestions, integrate
market-relevant keywords, make every bullet achievement-focused, keep education
dates exactly as stated, and only use information from the original resume.
Return the full CV as plain text with **SECTION NAME** headers.`

// CVCreator CV 生成 specialist：依赖 resume_analysis，产出 cv_artifact_reference。
// 文档存储通过 ArtifactStore 注入，核心只保存不透明引用。
type CVCreator struct {
	client llm.Client
	store  ArtifactStore
}

// NewCVCreator 创建 CV 生成 specialist
func NewCVCreator(client llm.Client, store ArtifactStore) *CVCreator {
	return &CVCreator{client: client, store: store}
}

// ID 实现 workflow.Specialist
func (c *CVCreator) ID() workflow.NodeID { return workflow.NodeCVCreator }

// Run 实现 workflow.Specialist
func (c *CVCreator) Run(ctx context.Context, st *workflow.State) (workflow.Delta, error) {
	if st.ResumeContent == "" || st.ResumeAnalysis == nil {
		return workflow.Delta{}, fmt.Errorf("cv_creator: 缺少简历内容或分析结果，resume_analyst 必须先执行")
	}

	analysisJSON, _ := json.MarshalIndent(st.ResumeAnalysis, "", "  ")
	marketJSON := []byte("no market data available")
	if st.JobMarketData != nil {
		marketJSON, _ = json.MarshalIndent(st.JobMarketData, "", "  ")
	}

	cv, err := c.client.ChatWithContext(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(cvPrompt, st.ResumeContent, analysisJSON, marketJSON)},
	}, llm.GenerateOptions{MaxTokens: 4096, Temperature: 0.4})
	if err != nil {
		return workflow.Delta{}, fmt.Errorf("cv_creator LLM 调用失败: %w", err)
	}
	if cv == "" {
		return workflow.Delta{}, fmt.Errorf("cv_creator: 模型返回空 CV")
	}

	name := fmt.Sprintf("cv-%s.md", uuid.NewString())
	ref, err := c.store.Save(ctx, name, []byte(cv))
	if err != nil {
		return workflow.Delta{}, fmt.Errorf("cv_creator 保存 CV failed: %w", err)
	}

	d := workflow.Delta{
		CVArtifactRef: ref,
		Messages:      []string{fmt.Sprintf("cv_creator: CV 已生成并保存 (%s)", ref)},
	}
	return finish(st, c.ID(), d), nil
}

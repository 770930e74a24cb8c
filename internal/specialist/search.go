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

// Package specialist 四个求职 specialist 节点：简历分析、职位调研、CV 生成与
// 职位匹配。每个 specialist 本质是 prompt 模板加模型输出后处理，只写自己
// 声明的结果槽位，并通过路由函数把控制权交还工作流。
package specialist

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Listing 单条职位
type Listing struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Salary      string `json:"salary,omitempty"`
	ApplyURL    string `json:"apply_url,omitempty"`
}

// SearchClient 职位检索的窄接口，外部集成细节不属于编排核心
type SearchClient interface {
	Search(ctx context.Context, role, location string, limit int) ([]Listing, error)
}

// HTTPSearchClient 基于 HTTP 的职位检索实现（Google Jobs 风格的聚合端点）
type HTTPSearchClient struct {
	http    *resty.Client
	baseURL string
	apiKey  string
}

// NewHTTPSearchClient 创建职位检索客户端
func NewHTTPSearchClient(baseURL, apiKey string) *HTTPSearchClient {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	return &HTTPSearchClient{http: client, baseURL: baseURL, apiKey: apiKey}
}

type searchResponse struct {
	Jobs []Listing `json:"jobs"`
}

// Search 实现 SearchClient
func (c *HTTPSearchClient) Search(ctx context.Context, role, location string, limit int) ([]Listing, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("search: 未配置检索端点")
	}
	if limit <= 0 {
		limit = 15
	}
	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        role,
			"location": location,
			"num":      fmt.Sprintf("%d", limit),
			"api_key":  c.apiKey,
		}).
		SetResult(&out).
		Get(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("职位检索failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("职位检索返回状态 %d: %s", resp.StatusCode(), resp.String())
	}
	return out.Jobs, nil
}

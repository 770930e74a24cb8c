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

package llm

import (
	"context"
)

// RateLimitedClient 包装任意 LLM Client，在真实调用前后执行限流控制。
// Coordinator 与各 specialist 直接持有 Client，统一经由此包装限流。
type RateLimitedClient struct {
	inner       Client
	rateLimiter *RateLimiter
}

// NewRateLimitedClient 创建带限流的 LLM 客户端。rateLimiter 为 nil 时退化为直接调用。
func NewRateLimitedClient(inner Client, rateLimiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// ChatWithContext 实现 Client.ChatWithContext，调用前后执行限流
func (c *RateLimitedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, c.inner.Provider()); err != nil {
			return "", err
		}
		defer c.rateLimiter.Release(c.inner.Provider())
	}
	return c.inner.ChatWithContext(ctx, messages, options)
}

// GenerateWithContext 实现 Client.GenerateWithContext
func (c *RateLimitedClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Model 实现 Client.Model
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 实现 Client.Provider
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

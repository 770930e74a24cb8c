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
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig LLM Provider 限流配置
type LimitConfig struct {
	RequestsPerMinute float64 // 每分钟请求数，<=0 表示不限
	MaxConcurrent     int     // 最大并发请求数，<=0 表示不限
}

// RateLimiter Provider 维度的限流器：RPS + 并发控制
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	defaults LimitConfig
	configs  map[string]LimitConfig
}

type providerLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewRateLimiter 创建限流器；configs 按 provider 名覆盖 defaults
func NewRateLimiter(configs map[string]LimitConfig, defaults LimitConfig) *RateLimiter {
	if defaults.RequestsPerMinute <= 0 {
		defaults.RequestsPerMinute = 3500
	}
	if defaults.MaxConcurrent <= 0 {
		defaults.MaxConcurrent = 50
	}
	return &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: defaults,
		configs:  configs,
	}
}

// Wait 阻塞直到获得该 provider 的请求配额与并发槽位；ctx 取消时返回错误
func (r *RateLimiter) Wait(ctx context.Context, provider string) error {
	l := r.limiterFor(provider)
	if err := l.requestLimiter.Wait(ctx); err != nil {
		return err
	}
	select {
	case l.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放并发槽位；必须与成功的 Wait 配对
func (r *RateLimiter) Release(provider string) {
	l := r.limiterFor(provider)
	select {
	case <-l.semaphore:
	default:
	}
}

func (r *RateLimiter) limiterFor(provider string) *providerLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[provider]; ok {
		return l
	}
	cfg := r.defaults
	if c, ok := r.configs[provider]; ok {
		if c.RequestsPerMinute > 0 {
			cfg.RequestsPerMinute = c.RequestsPerMinute
		}
		if c.MaxConcurrent > 0 {
			cfg.MaxConcurrent = c.MaxConcurrent
		}
	}
	l := &providerLimiter{
		requestLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), int(cfg.RequestsPerMinute/60.0)+1),
		semaphore:      make(chan struct{}, cfg.MaxConcurrent),
	}
	r.limiters[provider] = l
	return l
}

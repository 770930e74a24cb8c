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

package app

import (
	"context"
	"fmt"
	"strings"

	"career-platform/internal/coordinator"
	"career-platform/internal/model/llm"
	"career-platform/internal/registry"
	"career-platform/internal/resume"
	"career-platform/internal/specialist"
	"career-platform/internal/workflow"
	"career-platform/pkg/config"
	"career-platform/pkg/log"
	"career-platform/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Secrets secrets.Store
	LLM     llm.Client
	Store   registry.Store
}

// NewBootstrap 根据配置创建 Bootstrap（日志、Secret Store、LLM 客户端、Job 存储）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	var secretStore secrets.Store
	if cfg != nil {
		secretStore, err = secrets.NewStore(secrets.Config{
			Provider:   cfg.Secrets.Provider,
			Address:    cfg.Secrets.Address,
			Token:      cfg.Secrets.Token,
			PathPrefix: cfg.Secrets.PathPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 Secret Store failed: %w", err)
		}
	} else {
		secretStore = secrets.NewEnvStore()
	}

	llmClient, err := NewLLMClientFromConfig(cfg, secretStore)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端failed: %w", err)
	}

	store, err := NewJobStoreFromConfig(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化 Job 存储failed: %w", err)
	}

	return &Bootstrap{
		Config:  cfg,
		Logger:  logger,
		Secrets: secretStore,
		LLM:     llmClient,
		Store:   store,
	}, nil
}

// NewLLMClientFromConfig 按配置的默认 provider 创建限流 LLM 客户端
func NewLLMClientFromConfig(cfg *config.Config, secretStore secrets.Store) (llm.Client, error) {
	if cfg == nil || len(cfg.Model.LLM.Providers) == 0 {
		return nil, fmt.Errorf("未配置任何 LLM provider")
	}
	provider := cfg.Model.Defaults
	if provider == "" {
		provider = "openai"
	}
	pc, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("默认 provider %q 未在 model.llm.providers 中配置", provider)
	}

	apiKey := resolveAPIKey(context.Background(), secretStore, provider, pc.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("provider %q 缺少 api_key", provider)
	}

	client, err := llm.NewClient(provider, pc.Model, apiKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}

	limits := make(map[string]llm.LimitConfig, len(cfg.Model.LLM.Providers))
	for name, p := range cfg.Model.LLM.Providers {
		limits[name] = llm.LimitConfig{
			RequestsPerMinute: p.RequestsPerMinute,
			MaxConcurrent:     p.MaxConcurrent,
		}
	}
	return llm.NewRateLimitedClient(client, llm.NewRateLimiter(limits, llm.LimitConfig{})), nil
}

// resolveAPIKey 配置里的明文 key 直接用；${VAR} 引用按引用名、留空按约定路径从 Secret Store 取
func resolveAPIKey(ctx context.Context, store secrets.Store, provider, configured string) string {
	if configured != "" && !strings.HasPrefix(configured, "${") {
		return configured
	}
	if store == nil {
		return ""
	}
	key := fmt.Sprintf("model/%s/api_key", provider)
	if strings.HasPrefix(configured, "${") {
		key = strings.TrimSuffix(strings.TrimPrefix(configured, "${"), "}")
	}
	v, err := store.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}

// NewJobStoreFromConfig 按配置创建 Job 存储后端（memory | postgres | redis）
func NewJobStoreFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (registry.Store, error) {
	if cfg == nil {
		return registry.NewMemStore(), nil
	}
	switch cfg.Registry.Store {
	case "postgres":
		if cfg.Registry.DSN == "" {
			return nil, fmt.Errorf("registry.store=postgres 但未配置 dsn")
		}
		store, err := registry.NewPGStore(ctx, cfg.Registry.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("Job 存储使用 PostgreSQL 后端")
		return store, nil
	case "redis":
		if cfg.Registry.RedisAddr == "" {
			return nil, fmt.Errorf("registry.store=redis 但未配置 redis_addr")
		}
		store, err := registry.NewRedisStore(ctx, cfg.Registry.RedisAddr, cfg.Registry.RedisPassword, cfg.Registry.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("Job 存储使用 Redis 后端", "addr", cfg.Registry.RedisAddr)
		return store, nil
	default:
		return registry.NewMemStore(), nil
	}
}

// NewEngineFromConfig 装配工作流引擎：coordinator 节点 + 全部 specialist 节点
func NewEngineFromConfig(cfg *config.Config, logger *log.Logger, client llm.Client) (*workflow.Engine, error) {
	coord := coordinator.NewLLMCoordinator(client, coordinator.NewRuleCoordinator())
	requireApproval := true
	var maxUpload int64
	var searchCfg config.SearchConfig
	if cfg != nil {
		requireApproval = cfg.Workflow.RequireApproval()
		maxUpload = cfg.Workflow.MaxUploadBytes
		searchCfg = cfg.Search
	}

	parser := resume.NewParser(maxUpload)
	search := specialist.NewHTTPSearchClient(searchCfg.BaseURL, searchCfg.APIKey)
	artifacts := specialist.NewLocalArtifactStore("")

	nodeTimeout := config.WorkflowConfig{}.NodeTimeoutDuration()
	if cfg != nil {
		nodeTimeout = cfg.Workflow.NodeTimeoutDuration()
	}
	return workflow.NewEngine(logger, nodeTimeout,
		coordinator.NewNode(coord, requireApproval),
		specialist.NewResumeAnalyst(client, parser),
		specialist.NewJobResearcher(client, search, searchCfg.MaxJobs),
		specialist.NewCVCreator(client, artifacts),
		specialist.NewJobMatcher(client),
	)
}

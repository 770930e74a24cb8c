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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Model      ModelConfig      `mapstructure:"model"`
	Search     SearchConfig     `mapstructure:"search"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// WorkflowConfig 工作流引擎配置
type WorkflowConfig struct {
	// RequirePlanApproval 为 true 时 Coordinator 产出计划后挂起等待人工审批；未配置时默认 true
	RequirePlanApproval *bool `mapstructure:"require_plan_approval"`
	// NodeTimeout 单个 specialist 节点最长执行时间，如 "120s"；超时视为该节点失败，空则默认 120s
	NodeTimeout string `mapstructure:"node_timeout"`
	// MaxUploadBytes 简历文件大小上限，<=0 使用默认 16MB
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// RequireApproval 返回是否需要人工审批计划（默认 true）
func (c WorkflowConfig) RequireApproval() bool {
	if c.RequirePlanApproval == nil {
		return true
	}
	return *c.RequirePlanApproval
}

// NodeTimeoutDuration 解析 NodeTimeout；非法或为空时返回默认 120s
func (c WorkflowConfig) NodeTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.NodeTimeout); err == nil && d > 0 {
		return d
	}
	return 120 * time.Second
}

// RegistryConfig Job Registry 配置（存储后端、并发、保留窗口）
type RegistryConfig struct {
	// Store Job 存储后端：memory | postgres | redis
	Store string `mapstructure:"store"`
	// DSN Postgres 连接串，store=postgres 时必填
	DSN string `mapstructure:"dsn"`
	// RedisAddr / RedisDB / RedisPassword store=redis 时使用
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`
	// Workers 进程内执行 worker 数；0 表示本进程不执行（由独立 Worker 进程拉取），<0 使用默认 2
	Workers int `mapstructure:"workers"`
	// Retention 终态 Job 保留窗口，如 "24h"；到期后可被清理循环回收，空则默认 24h
	Retention string `mapstructure:"retention"`
	// SuspendedRetention 挂起等待审批的 Job 被视为放弃前的窗口，如 "72h"；空则默认 72h
	SuspendedRetention string `mapstructure:"suspended_retention"`
	// SweepInterval 清理循环间隔，空则默认 1h
	SweepInterval string `mapstructure:"sweep_interval"`
	// StaleRunning running Job 多久无更新视为 worker 已死并重新入队，如 "30m"；
	// 须大于单个 Job 最长执行时间，空则默认 30m
	StaleRunning string `mapstructure:"stale_running"`
}

// RetentionDuration 解析终态保留窗口（默认 24h）
func (c RegistryConfig) RetentionDuration() time.Duration {
	if d, err := time.ParseDuration(c.Retention); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// SuspendedRetentionDuration 解析挂起保留窗口（默认 72h）
func (c RegistryConfig) SuspendedRetentionDuration() time.Duration {
	if d, err := time.ParseDuration(c.SuspendedRetention); err == nil && d > 0 {
		return d
	}
	return 72 * time.Hour
}

// StaleRunningDuration 解析 running 失联回收窗口（默认 30m）
func (c RegistryConfig) StaleRunningDuration() time.Duration {
	if d, err := time.ParseDuration(c.StaleRunning); err == nil && d > 0 {
		return d
	}
	return 30 * time.Minute
}

// SweepIntervalDuration 解析清理间隔（默认 1h）
func (c RegistryConfig) SweepIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.SweepInterval); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

// WorkerConfig 独立 Worker 进程配置
type WorkerConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`
	PollInterval string `mapstructure:"poll_interval"` // Job Claim 轮询间隔，如 "2s"
	WorkerID     string `mapstructure:"worker_id"`     // 为空时自动生成
}

// PollIntervalDuration 解析轮询间隔（默认 2s）
func (c WorkerConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return 2 * time.Second
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig `mapstructure:"llm"`
	Defaults string    `mapstructure:"defaults"` // 默认 provider 名
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SearchConfig 职位搜索服务配置（Job Researcher 使用的外部搜索 API）
type SearchConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	MaxJobs int    `mapstructure:"max_jobs"` // 单次检索的职位数上限，<=0 默认 15
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"` // env | vault
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中 ${VAR} 形式的环境变量引用（API key 等）
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		if v := resolveEnvRef(providerConfig.APIKey); v != "" {
			providerConfig.APIKey = v
			config.Model.LLM.Providers[provider] = providerConfig
		}
	}
	if v := resolveEnvRef(config.Search.APIKey); v != "" {
		config.Search.APIKey = v
	}
}

// resolveEnvRef "${VAR}" → 环境变量值；非引用或未设置时返回空
func resolveEnvRef(ref string) string {
	if !strings.HasPrefix(ref, "$") {
		return ""
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(ref, "}"), "${")
	return os.Getenv(envVar)
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml，合并 configs/model.yaml）
func LoadAPIConfig() (*Config, error) {
	return loadWithModel("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置（configs/worker.yaml，合并 configs/model.yaml）
func LoadWorkerConfig() (*Config, error) {
	return loadWithModel("configs/worker.yaml")
}

// loadWithModel 加载主配置并合并同目录 model.yaml 的 Model 段；model.yaml 缺失时不报错
func loadWithModel(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(filepath.Dir(path), "model.yaml")
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		modelPath = filepath.Join(filepath.Dir(abs), "model.yaml")
	}
	if modelCfg, errModel := LoadConfig(modelPath); errModel == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}

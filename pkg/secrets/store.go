// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
)

// Store Secret 存储接口：API key 等敏感配置统一经由此接口获取
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error
}

// Config Secret Store 配置
type Config struct {
	Provider   string `mapstructure:"provider"`    // vault | env
	Address    string `mapstructure:"address"`     // Vault server address
	Token      string `mapstructure:"token"`       // Vault token
	PathPrefix string `mapstructure:"path_prefix"` // Vault secret path prefix
}

// NewStore 创建 Secret Store；默认 env（从环境变量解析 ${VAR} 引用）
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "vault":
		return NewVaultStore(config)
	default:
		return NewEnvStore(), nil
	}
}

// Copyright 2026 fanjia1024
// Environment variable based secret store

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type envStore struct{}

// NewEnvStore 创建环境变量 secret store
func NewEnvStore() Store {
	return &envStore{}
}

// Get 先按原始 key 查环境变量，再按规范化形式查
// （"model/openai/api_key" → "MODEL_OPENAI_API_KEY"）
func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	if value := os.Getenv(normalizeEnvKey(key)); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("environment variable not set: %s", key)
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(normalizeEnvKey(key), value)
}

func normalizeEnvKey(key string) string {
	replacer := strings.NewReplacer("/", "_", ".", "_", "-", "_")
	return strings.ToUpper(replacer.Replace(key))
}

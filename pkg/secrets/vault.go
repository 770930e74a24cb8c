// Copyright 2026 fanjia1024
// HashiCorp Vault secret store

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

type vaultStore struct {
	kv    *vault.KVv2
	mount string
}

// NewVaultStore 创建 Vault secret store；API key 按 KV v2 路径组织，
// 如 model/openai/api_key → <mount>/data/model/openai
func NewVaultStore(config Config) (Store, error) {
	if config.Address == "" {
		config.Address = "http://localhost:8200"
	}

	cfg := vault.DefaultConfig()
	cfg.Address = config.Address

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 vault client failed: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("连接 vault failed: %w", err)
	}

	mount := config.PathPrefix
	if mount == "" {
		mount = "secret"
	}
	return &vaultStore{kv: client.KVv2(mount), mount: mount}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	path, field := splitSecretKey(key)
	secret, err := v.kv.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("读取 vault secret %s failed: %w", path, err)
	}
	if val, ok := secret.Data[field].(string); ok {
		return val, nil
	}
	return "", fmt.Errorf("vault secret %s 缺少字段 %s", path, field)
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	path, field := splitSecretKey(key)
	if _, err := v.kv.Put(ctx, path, map[string]interface{}{field: value}); err != nil {
		return fmt.Errorf("写入 vault secret %s failed: %w", path, err)
	}
	return nil
}

// splitSecretKey 把 "model/openai/api_key" 拆成路径 "model/openai" 与字段 "api_key"；
// 无分隔符时路径为 key 本身，字段为 "value"
func splitSecretKey(key string) (path, field string) {
	key = strings.Trim(key, "/")
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key, "value"
	}
	return key[:idx], key[idx+1:]
}

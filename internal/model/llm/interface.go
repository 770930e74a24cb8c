package llm

import (
	"context"
)

// Client LLM 客户端接口
type Client interface {
	// ChatWithContext 使用上下文聊天
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// GenerateWithContext 使用上下文生成文本（单条 user prompt）
	GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 创建新的 LLM 客户端；所有 provider 走 OpenAI 兼容端点（deepseek/qwen 等），
// baseURL 为空时用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	c, err := NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		c.provider = provider
	}
	return c, nil
}

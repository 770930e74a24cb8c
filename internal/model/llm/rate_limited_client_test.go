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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a simple mock for testing.
type mockClient struct {
	chatCalls    int
	lastMessages []Message
	lastOptions  GenerateOptions
	response     string
}

func (m *mockClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	m.chatCalls++
	m.lastMessages = messages
	m.lastOptions = options
	return m.response, nil
}

func (m *mockClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return m.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

func (m *mockClient) Model() string    { return "test-model" }
func (m *mockClient) Provider() string { return "test" }

func TestRateLimitedClient_PassThrough(t *testing.T) {
	mock := &mockClient{response: "Hello, World!"}
	client := NewRateLimitedClient(mock, nil)

	result, err := client.ChatWithContext(context.Background(), []Message{{Role: "user", Content: "Hi"}}, GenerateOptions{Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", result)
	assert.Equal(t, 1, mock.chatCalls)
	assert.Equal(t, 0.7, mock.lastOptions.Temperature)

	// Generate 内部统一走 ChatWithContext
	_, err = client.GenerateWithContext(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.chatCalls)
	assert.Equal(t, "user", mock.lastMessages[0].Role)
	assert.Equal(t, "prompt", mock.lastMessages[0].Content)

	assert.Equal(t, "test-model", client.Model())
	assert.Equal(t, "test", client.Provider())
}

func TestRateLimiter_ConcurrencyLimit(t *testing.T) {
	rl := NewRateLimiter(nil, LimitConfig{RequestsPerMinute: 600000, MaxConcurrent: 1})

	require.NoError(t, rl.Wait(context.Background(), "openai"))

	// 唯一槽位被占用，第二个请求应在超时内拿不到
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx, "openai")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	rl.Release("openai")
	require.NoError(t, rl.Wait(context.Background(), "openai"))
	rl.Release("openai")
}

func TestRateLimiter_ProviderOverride(t *testing.T) {
	configs := map[string]LimitConfig{
		"deepseek": {RequestsPerMinute: 600000, MaxConcurrent: 2},
	}
	rl := NewRateLimiter(configs, LimitConfig{RequestsPerMinute: 600000, MaxConcurrent: 1})

	// deepseek 覆盖为 2 并发，两次 Wait 都应立即成功
	require.NoError(t, rl.Wait(context.Background(), "deepseek"))
	require.NoError(t, rl.Wait(context.Background(), "deepseek"))
	rl.Release("deepseek")
	rl.Release("deepseek")
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	rl := NewRateLimiter(nil, LimitConfig{RequestsPerMinute: 600000, MaxConcurrent: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx, "openai"))
}

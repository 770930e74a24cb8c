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

package specialist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore 生成文档的窄存储接口。核心只保存并转发返回的不透明引用，
// 云端上传等集成属于外部协作方。
type ArtifactStore interface {
	Save(ctx context.Context, name string, content []byte) (string, error)
}

// LocalArtifactStore 写本地目录的实现，引用即文件路径
type LocalArtifactStore struct {
	dir string
}

// NewLocalArtifactStore 创建本地 artifact 存储；dir 为空用系统临时目录
func NewLocalArtifactStore(dir string) *LocalArtifactStore {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "career-artifacts")
	}
	return &LocalArtifactStore{dir: dir}
}

// Save 实现 ArtifactStore
func (s *LocalArtifactStore) Save(_ context.Context, name string, content []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: 创建目录failed: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("artifact: 写入failed: %w", err)
	}
	return path, nil
}

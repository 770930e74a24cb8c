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

// Package resume 负责从用户提供的简历文件引用中提取纯文本，供各 specialist 消费。
package resume

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultMaxBytes = 16 << 20 // 16MB

// Parser 简历文本提取器
type Parser struct {
	maxBytes int64
}

// NewParser 创建 Parser；maxBytes<=0 使用默认 16MB
func NewParser(maxBytes int64) *Parser {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Parser{maxBytes: maxBytes}
}

// Parse 读取 ref 指向的简历文件并提取纯文本；支持 .pdf 与纯文本（.txt/.md 等）
func (p *Parser) Parse(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("resume: 未提供简历文件")
	}
	info, err := os.Stat(ref)
	if err != nil {
		return "", fmt.Errorf("resume: 简历文件不可读: %w", err)
	}
	if info.Size() > p.maxBytes {
		return "", fmt.Errorf("resume: 简历文件超过大小上限 %d bytes", p.maxBytes)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("resume: 读取简历文件failed: %w", err)
	}

	switch strings.ToLower(filepath.Ext(ref)) {
	case ".pdf":
		text, err := ExtractPDFText(data)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	default:
		return strings.TrimSpace(string(data)), nil
	}
}

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
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed system_prompt.txt
var defaultSystemInstruction string

// DefaultSystemInstruction 内置的推荐助手系统指令
func DefaultSystemInstruction() string {
	return strings.TrimSpace(defaultSystemInstruction)
}

// LoadSystemInstruction path 为空时返回内置指令，否则读取文件内容
func LoadSystemInstruction(path string) (string, error) {
	if path == "" {
		return DefaultSystemInstruction(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system instruction: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("system instruction %s is empty", path)
	}
	return s, nil
}

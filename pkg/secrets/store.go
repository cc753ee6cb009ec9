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

package secrets

import (
	"context"
	"fmt"
	"strings"

	"ec-recommender/pkg/errors"
)

// RefPrefix 配置值以此开头时视为 secret 引用
const RefPrefix = "secret://"

// Store 只读 secret 来源
type Store interface {
	// Get 返回 key 对应的值；不存在时返回包装了 errors.ErrNotFound 的错误
	Get(ctx context.Context, key string) (string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string // env | memory | vault
	Vault    VaultConfig
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(nil), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %q", config.Provider)
	}
}

// IsRef value 是否为 secret://<key>
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve 解析 secret://<key> 引用；普通值原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, RefPrefix)
	if key == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "empty secret reference")
	}
	if store == nil {
		return "", errors.Wrapf(errors.ErrNotConfigured, "secret store for %q", key)
	}
	v, err := store.Get(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "resolve secret %q", key)
	}
	return v, nil
}

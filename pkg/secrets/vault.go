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

	vault "github.com/hashicorp/vault/api"

	"ec-recommender/pkg/errors"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address   string // 如 http://vault:8200
	Token     string
	MountPath string // KV v2 挂载路径，默认 secret
}

type vaultStore struct {
	kv *vault.KVv2
}

// NewVaultStore 创建 Vault KV v2 secret store；值取 data.value，没有时取第一个字符串字段
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}

	mount := config.MountPath
	if mount == "" {
		mount = "secret"
	}
	return &vaultStore{kv: client.KVv2(mount)}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s", key)
		}
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s", key)
	}
	if s, ok := secret.Data["value"].(string); ok {
		return s, nil
	}
	for _, val := range secret.Data {
		if s, ok := val.(string); ok {
			return s, nil
		}
	}
	return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s has no string value", key)
}

// Package secrets resolves sensitive configuration from HashiCorp Vault
// with an environment-variable fallback, so development runs without a
// Vault deployment.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	vault "github.com/hashicorp/vault/api"

	"character-companion/backend/pkg/logger"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultAddress = errors.New("no vault address provided")
	ErrNoVaultToken   = errors.New("no vault token provided")
)

// Config holds Vault connection settings, read from the environment.
type Config struct {
	Address     string
	Token       string
	Namespace   string
	SecretsPath string
	Enabled     bool
}

// Manager resolves named secrets. Values are cached for the process
// lifetime; secrets this service reads (JWT signing key, storage
// credentials) do not rotate mid-run.
type Manager struct {
	client *vault.Client
	config Config
	mu     sync.RWMutex
	cache  map[string]string
	log    *logger.Logger
}

// NewManager creates a manager from VAULT_* environment variables. With
// VAULT_ENABLED unset or false it resolves from the environment only.
func NewManager(log *logger.Logger) (*Manager, error) {
	config := Config{
		Address:     os.Getenv("VAULT_ADDR"),
		Token:       os.Getenv("VAULT_TOKEN"),
		Namespace:   os.Getenv("VAULT_NAMESPACE"),
		SecretsPath: os.Getenv("VAULT_SECRETS_PATH"),
		Enabled:     os.Getenv("VAULT_ENABLED") == "true" || os.Getenv("VAULT_ENABLED") == "1",
	}
	if config.SecretsPath == "" {
		config.SecretsPath = "character-companion"
	}

	m := &Manager{config: config, cache: make(map[string]string), log: log}
	if !config.Enabled {
		return m, nil
	}

	if config.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if config.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, err
	}
	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}
	m.client = client

	return m, nil
}

// GetSecret resolves key from Vault, falling back to the environment.
func (m *Manager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()
	if found {
		return cached, nil
	}

	if !m.config.Enabled {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()

	return value, nil
}

// GetSecretWithDefault resolves key, returning defaultValue when missing.
func (m *Manager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (m *Manager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2("secret").Get(ctx, m.config.SecretsPath)
	if err != nil {
		return "", ErrSecretNotFound
	}

	raw, ok := secret.Data[strings.ToLower(key)]
	if !ok {
		return "", ErrSecretNotFound
	}
	value, ok := raw.(string)
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (m *Manager) getFromEnvironment(key string) (string, error) {
	value := os.Getenv(strings.ToUpper(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

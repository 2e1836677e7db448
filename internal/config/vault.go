package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cvinsight/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets holds KVv2 paths; an empty path leaves that setting alone.
type VaultSecrets struct {
	APIKeys    string `mapstructure:"apiKeys"`    // "keys": comma separated keys for /api routes
	BackendKey string `mapstructure:"backendKey"` // "api_key": credential sent to the analysis backend
	TLSCerts   string `mapstructure:"tlsCerts"`   // "cert" and "key": PEM content
}

// VaultClient reads cvinsight secrets from a KVv2 engine.
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// NewVaultClient connects and checks Vault health before any secret is read.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.NewWithHandler(slog.DiscardHandler)
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := vaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiCfg.Address, err)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"namespace", cfg.Namespace,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, logger: logger}, nil
}

// vaultToken prefers the inline token over the token file.
func vaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// ReadKV returns the data map of the KVv2 secret at path.
func (vc *VaultClient) ReadKV(path string) (map[string]any, error) {
	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	return data, nil
}

// String reads one string field of the secret at path.
func (vc *VaultClient) String(path, key string) (string, error) {
	data, err := vc.ReadKV(path)
	if err != nil {
		return "", err
	}
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	vc.logger.Debug("Secret read from Vault", "path", path, "key", key, "masked_value", MaskSecret(s))
	return s, nil
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case len(value) > 0:
		return "****"
	}
	return ""
}

// secretBinding copies one Vault secret into the config.
type secretBinding struct {
	name  string
	path  func(VaultSecrets) string
	apply func(vc *VaultClient, path string, cfg *Config) error
}

var secretBindings = []secretBinding{
	{"API keys", func(s VaultSecrets) string { return s.APIKeys }, applyAPIKeys},
	{"backend API key", func(s VaultSecrets) string { return s.BackendKey }, applyBackendKey},
	{"TLS certificate", func(s VaultSecrets) string { return s.TLSCerts }, applyTLSCert},
}

// ApplyVaultSecrets overlays the configured Vault secrets onto cfg.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}

	vc, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return vc.apply(cfg)
}

func (vc *VaultClient) apply(cfg *Config) error {
	loaded := 0
	for _, b := range secretBindings {
		path := b.path(cfg.Vault.Secrets)
		if path == "" {
			continue
		}
		if err := b.apply(vc, path, cfg); err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", b.name, err)
		}
		loaded++
	}
	vc.logger.Info("Applied secrets from Vault", "secrets", loaded)
	return nil
}

func applyAPIKeys(vc *VaultClient, path string, cfg *Config) error {
	value, err := vc.String(path, "keys")
	if err != nil {
		return err
	}

	var keys []string
	for part := range strings.SplitSeq(value, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		vc.logger.Warn("No API keys found in Vault", "path", path)
		return nil
	}

	cfg.Server.APIKeys = keys
	vc.logger.Info("API keys loaded from Vault", "count", len(keys))
	return nil
}

// applyBackendKey leaves an existing key in place when the secret is blank.
func applyBackendKey(vc *VaultClient, path string, cfg *Config) error {
	value, err := vc.String(path, "api_key")
	if err != nil {
		return err
	}
	key := strings.TrimSpace(value)
	if key == "" {
		vc.logger.Warn("Empty backend API key found in Vault", "path", path)
		return nil
	}
	cfg.Backend.APIKey = key
	return nil
}

// applyTLSCert needs both halves of the pair; one without the other cannot serve.
func applyTLSCert(vc *VaultClient, path string, cfg *Config) error {
	data, err := vc.ReadKV(path)
	if err != nil {
		return err
	}
	cert, _ := data["cert"].(string)
	key, _ := data["key"].(string)
	if cert == "" || key == "" {
		return fmt.Errorf("secret at %s needs both 'cert' and 'key' PEM fields", path)
	}

	cfg.Server.TLS.CertContent = cert
	cfg.Server.TLS.KeyContent = key
	vc.logger.Debug("TLS key pair loaded from Vault", "cert_bytes", len(cert), "key_bytes", len(key))
	return nil
}

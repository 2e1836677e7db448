package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cvinsight/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

// newFakeVault serves KVv2 secrets from an in-memory map keyed by API path.
func newFakeVault(t *testing.T, secrets map[string]map[string]any) *VaultClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     data,
				"metadata": map[string]any{"version": 3},
			},
		})
	}))
	t.Cleanup(srv.Close)

	client, err := api.NewClient(&api.Config{Address: srv.URL})
	require.NoError(t, err)
	client.SetToken("test-token")

	return &VaultClient{client: client, logger: newTestLogger()}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "sk-a****wxyz", MaskSecret("sk-abcdefghwxyz"))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "", MaskSecret(""))
}

func TestVaultString(t *testing.T) {
	vc := newFakeVault(t, map[string]map[string]any{
		"/v1/secret/data/cvinsight/backend": {"api_key": "sk-from-vault-1234", "count": 5},
	})

	value, err := vc.String("secret/data/cvinsight/backend", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-vault-1234", value)

	_, err = vc.String("secret/data/cvinsight/backend", "missing")
	assert.ErrorContains(t, err, "not found")

	_, err = vc.String("secret/data/cvinsight/backend", "count")
	assert.ErrorContains(t, err, "is not a string")

	_, err = vc.String("secret/data/nowhere", "api_key")
	assert.Error(t, err)
}

func TestApplySecrets(t *testing.T) {
	vc := newFakeVault(t, map[string]map[string]any{
		"/v1/secret/data/backend":  {"api_key": "  sk-vault-key-5678 \n"},
		"/v1/secret/data/empty":    {"api_key": "", "keys": " , "},
		"/v1/secret/data/apikeys":  {"keys": "alpha, beta ,,gamma"},
		"/v1/secret/data/tls":      {"cert": "cert-pem", "key": "key-pem"},
		"/v1/secret/data/tls-half": {"cert": "cert-pem"},
	})

	tests := []struct {
		name    string
		secrets VaultSecrets
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name:    "backend key is trimmed",
			secrets: VaultSecrets{BackendKey: "secret/data/backend"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-vault-key-5678", cfg.Backend.APIKey)
			},
		},
		{
			name:    "blank secrets keep existing values",
			secrets: VaultSecrets{BackendKey: "secret/data/empty", APIKeys: "secret/data/empty"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-env", cfg.Backend.APIKey)
				assert.Equal(t, []string{"env-key"}, cfg.Server.APIKeys)
			},
		},
		{
			name:    "api keys are split and trimmed",
			secrets: VaultSecrets{APIKeys: "secret/data/apikeys"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Server.APIKeys)
			},
		},
		{
			name:    "tls key pair",
			secrets: VaultSecrets{TLSCerts: "secret/data/tls"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "cert-pem", cfg.Server.TLS.CertContent)
				assert.Equal(t, "key-pem", cfg.Server.TLS.KeyContent)
			},
		},
		{
			name:    "half a tls pair is rejected",
			secrets: VaultSecrets{TLSCerts: "secret/data/tls-half"},
			wantErr: "needs both 'cert' and 'key'",
		},
		{
			name:    "missing secret names the binding",
			secrets: VaultSecrets{BackendKey: "secret/data/nowhere"},
			wantErr: "failed to load backend API key from vault",
		},
		{
			name: "no paths configured",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-env", cfg.Backend.APIKey)
				assert.Empty(t, cfg.Server.TLS.CertContent)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Backend: BackendConfig{APIKey: "from-env"},
				Server:  ServerConfig{APIKeys: []string{"env-key"}},
				Vault:   VaultConfig{Enabled: true, Secrets: tt.secrets},
			}

			err := vc.apply(cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestVaultToken(t *testing.T) {
	t.Run("token from config", func(t *testing.T) {
		token, err := vaultToken(VaultConfig{Token: "direct-token", TokenFile: "/ignored"})
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := vaultToken(VaultConfig{TokenFile: tokenFile})
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := vaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"})
		assert.ErrorContains(t, err, "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := vaultToken(VaultConfig{})
		assert.ErrorContains(t, err, "vault token is required")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{APIKey: "unchanged"}}
	assert.NoError(t, ApplyVaultSecrets(cfg, newTestLogger()))
	assert.Equal(t, "unchanged", cfg.Backend.APIKey)
}

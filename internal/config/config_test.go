package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_AppliesDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 8081
store:
  type: sqlite
  sqlite:
    path: `+filepath.Join(dir, "nested", "test.db")+`
jwt:
  secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, "8h", cfg.JWT.ExpiresIn)
	assert.Equal(t, "tanjung-selor-device-1", cfg.Monitoring.DefaultDevice)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  type: sqlite
  sqlite:
    path: `+filepath.Join(t.TempDir(), "test.db")+`
jwt:
  secret: file-secret
`)
	t.Setenv("AQPANEL_JWT_SECRET", "env-secret")
	t.Setenv("AQPANEL_PORT", "9999")
	t.Setenv("AQPANEL_API_KEYS", "alpha, beta,,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Security.APIKeys)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults with secret", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "firebase" }, true},
		{"mysql without user", func(c *Config) {
			c.Store.Type = "mysql"
			c.Store.MySQL.Database = "aq"
		}, true},
		{"mysql complete", func(c *Config) {
			c.Store.Type = "mysql"
			c.Store.MySQL.Username = "aq"
			c.Store.MySQL.Database = "aq"
		}, false},
		{"redis without addr", func(c *Config) {
			c.Store.Type = "redis"
			c.Store.Redis.Addr = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.JWT.Secret = "secret"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

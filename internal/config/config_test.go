package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "print-relay", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8085", cfg.App.Port)
		assert.Equal(t, "ghostscript", cfg.Render.Backend)
		assert.Equal(t, 60*time.Second, cfg.Render.Timeout)
		assert.Equal(t, 465, cfg.SMTP.Port)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
		assert.False(t, cfg.Storage.Enabled)
		assert.Empty(t, cfg.Accounting.AdminIDs)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("PRINTRELAY_APP_PORT", "9000")
		t.Setenv("PRINTRELAY_SMTP_HOST", "smtp.example.com")
		t.Setenv("PRINTRELAY_SMTP_PORT", "587")
		t.Setenv("PRINTRELAY_RENDER_TIMEOUT", "90s")
		t.Setenv("PRINTRELAY_ACCOUNTING_ADMIN_IDS", "42, 7")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
		assert.Equal(t, 587, cfg.SMTP.Port)
		assert.Equal(t, 90*time.Second, cfg.Render.Timeout)
		assert.Equal(t, []int64{42, 7}, cfg.Accounting.AdminIDs)
	})

	t.Run("invalid admin id", func(t *testing.T) {
		t.Setenv("PRINTRELAY_ACCOUNTING_ADMIN_IDS", "alice")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires the mail relay", func(t *testing.T) {
		t.Setenv("PRINTRELAY_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp.host")
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.toml")
	content := `
[app]
port = "7000"

[render]
backend = "mupdf"

[smtp]
host = "mail.example.org"
printer_email = "printer@example.org"

[redis]
enabled = true
ttl = "2h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.App.Port)
	assert.Equal(t, "mupdf", cfg.Render.Backend)
	assert.Equal(t, "printer@example.org", cfg.SMTP.PrinterEmail)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Redis.TTL)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:    AppConfig{Env: "development"},
			Render: RenderConfig{Backend: "ghostscript", Timeout: time.Second},
			SMTP:   SMTPConfig{Port: 465},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Render.Backend = "poppler" }, wantErr: "render.backend"},
		{name: "zero timeout", mutate: func(c *Config) { c.Render.Timeout = 0 }, wantErr: "render.timeout"},
		{name: "bad smtp port", mutate: func(c *Config) { c.SMTP.Port = 70000 }, wantErr: "smtp.port"},
		{name: "storage without bucket", mutate: func(c *Config) { c.Storage.Enabled = true }, wantErr: "storage.bucket"},
		{name: "redis without ttl", mutate: func(c *Config) { c.Redis.Enabled = true }, wantErr: "redis.ttl"},
		{
			name: "production without printer email",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.SMTP.Host = "smtp.example.com"
			},
			wantErr: "smtp.printer_email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

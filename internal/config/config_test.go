package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SHEET_ID", "sheet-123")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("COC_API_TOKEN", "coc-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.BatchSize)
	assert.Equal(t, 400*time.Millisecond, cfg.BatchDelay)
	assert.Equal(t, "@every 3m", cfg.RefreshSchedule)
	assert.Equal(t, 3*time.Minute, cfg.StaleAfter)
	assert.Equal(t, PolicyLazy, cfg.QueryRefreshPolicy)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, ":3001", cfg.ListenAddr())
	assert.Equal(t, "sheet1", cfg.SheetRange)
	assert.Equal(t, 2, cfg.ColumnPlayerTag)
	assert.Equal(t, 8, cfg.ColumnAssignedClanTag)
	assert.False(t, cfg.UsesDeveloperLogin())
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.True(t, cfg.IsDevelopment())
}

func TestEnvironmentHelpers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("BATCH_DELAY", "1s")
	t.Setenv("QUERY_REFRESH_POLICY", "cached")
	t.Setenv("COLUMN_PLAYER_TAG", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchDelay)
	assert.Equal(t, PolicyCached, cfg.QueryRefreshPolicy)
	assert.Equal(t, 0, cfg.ColumnPlayerTag)
}

func TestLoad_MissingSheet(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("COC_API_TOKEN", "coc-token")
	t.Setenv("SHEET_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		CocAPIToken:        "token",
		SheetID:            "sheet",
		BatchSize:          15,
		BatchDelay:         400 * time.Millisecond,
		QueryRefreshPolicy: PolicyLazy,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"developer login instead of token", func(c *Config) {
			c.CocAPIToken = ""
			c.CocEmail = "me@example.com"
			c.CocPassword = "secret"
		}, false},
		{"no credentials", func(c *Config) { c.CocAPIToken = "" }, true},
		{"email without password", func(c *Config) {
			c.CocAPIToken = ""
			c.CocEmail = "me@example.com"
		}, true},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"negative delay", func(c *Config) { c.BatchDelay = -time.Second }, true},
		{"unknown policy", func(c *Config) { c.QueryRefreshPolicy = "sometimes" }, true},
		{"negative column", func(c *Config) { c.ColumnAssignedClanTag = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr())
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.APIURL)
	assert.Equal(t, 16000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.True(t, cfg.LLM.Configured())

	assert.Equal(t, "1.0.0", cfg.Translate.Version)
	assert.Equal(t, "en", cfg.Translate.SourceLanguage.String())
	assert.Equal(t, "zh-CN", cfg.Translate.TargetLanguage.String())
	assert.Equal(t, 5, cfg.Translate.MaxConcurrent)
	assert.Equal(t, 600*time.Second, cfg.Translate.CallTimeout)
	assert.Equal(t, 3, cfg.Translate.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Translate.RetryDelay)
	assert.Equal(t, []string{"OpenClaw", "ClawHub", "API", "CLI"}, cfg.Translate.ProtectedTerms)

	assert.Equal(t, "./data/cache.db", cfg.Cache.DBPath)
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.MaxAge())
	assert.Equal(t, "0 1 * * *", cfg.Cache.CleanupCron)
	assert.True(t, cfg.Cache.BackupOnStart)
}

func TestNewFromEnv_Aliases(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "alias-key")
	t.Setenv("OPENAI_MODEL", "gpt-4.1")
	t.Setenv("MAX_TOKENS", "2048")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "alias-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
}

func TestNewFromEnv_PrimaryNameWinsOverAlias(t *testing.T) {
	t.Setenv("LLM_MODEL", "primary")
	t.Setenv("OPENAI_MODEL", "alias")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.LLM.Model)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("TARGET_LANGUAGE", "ja")
	t.Setenv("MAX_CONCURRENT_TRANSLATIONS", "2")
	t.Setenv("CACHE_BACKUP_ON_START", "false")
	t.Setenv("PROTECTED_TERMS", " Foo , ,Bar ")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.HTTP.Addr())
	assert.Equal(t, "ja", cfg.Translate.TargetLanguage.String())
	assert.Equal(t, 2, cfg.Translate.MaxConcurrent)
	assert.False(t, cfg.Cache.BackupOnStart)
	assert.Equal(t, []string{"Foo", "Bar"}, cfg.Translate.ProtectedTerms)
}

func TestNewFromEnv_OptionsApplied(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.Cache.DBPath = "/tmp/other.db"
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Cache.DBPath)
}

func TestNewFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad language", map[string]string{"TARGET_LANGUAGE": "not a tag!"}},
		{"zero concurrency", map[string]string{"MAX_CONCURRENT_TRANSLATIONS": "0"}},
		{"bad cron", map[string]string{"CACHE_CLEANUP_CRON": "every day"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"zero max age", map[string]string{"CACHE_MAX_AGE_DAYS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_model: from-file\nport: 8181\n"), 0o644))
	t.Setenv("PORT", "8282")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.LLM.Model)
	assert.Equal(t, 8282, cfg.HTTP.Port, "environment overrides the file")
}

func TestConfigString_HidesSecrets(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.LLM.APIKey = "sk-secret"
		c.HTTP.Bearer = "bearer-secret"
	})
	require.NoError(t, err)
	s := cfg.String()
	assert.NotContains(t, s, "sk-secret")
	assert.NotContains(t, s, "bearer-secret")
	assert.Contains(t, s, "gpt-4o-mini")
}

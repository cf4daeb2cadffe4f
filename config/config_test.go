package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/", cfg.Server.DefaultRoute)
	assert.Equal(t, "gpt-4", cfg.OpenAI.Model)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.ScriptModel)
	assert.InDelta(t, 0.7, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.OpenAI.CallTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Generation.RunTimeout())
	assert.Equal(t, "thementorprogram.xyz", cfg.Admin.EmailDomain)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	t.Setenv("OPENAI_TIMEOUT_SEC", "5")
	t.Setenv("ADMIN_EMAIL_DOMAIN", "@example.org")
	t.Setenv("GENERATION_TIMEOUT_SEC", "45")
	t.Setenv("GENERATION_LOCK_TTL_SEC", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.2, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.OpenAI.CallTimeout())
	assert.Equal(t, "example.org", cfg.Admin.EmailDomain)
	assert.Equal(t, 45*time.Second, cfg.Generation.RunTimeout())
	assert.Equal(t, time.Minute, cfg.Generation.LockTTL())
}

func TestLoadRejectsLockShorterThanRun(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GENERATION_TIMEOUT_SEC", "900")
	t.Setenv("GENERATION_LOCK_TTL_SEC", "600")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "GENERATION_LOCK_TTL_SEC")

	t.Setenv("GENERATION_LOCK_TTL_SEC", "900")
	_, err = Load()
	assert.NoError(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "studio", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/studio?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/x"
	assert.Equal(t, "postgres://elsewhere/x", c.DSN())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "bot-token")
	t.Setenv("VK_TOKEN", "vk-token")
	t.Setenv("MAX_LINKS_PER_BATCH", "10")
	t.Setenv("SESSION_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bot-token", cfg.Bot.Token)
	assert.Equal(t, "vk-token", cfg.Provider.Token)
	assert.Equal(t, ModePolling, cfg.Bot.Mode)
	assert.Equal(t, 10, cfg.Intake.MaxBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Intake.SessionTTL)
	assert.Equal(t, "5.199", cfg.Provider.APIVersion)
	assert.Equal(t, 10*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 5, cfg.Intake.PageSize)
}

func TestLoad_MissingTokens(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("VK_TOKEN", "vk-token")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingBotToken)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Bot:      BotConfig{Token: "t", Mode: ModePolling},
			Provider: ProviderConfig{Token: "p"},
			Intake:   IntakeConfig{MaxBatchSize: 50},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no provider token", mutate: func(c *Config) { c.Provider.Token = " " }, wantErr: true},
		{name: "zero batch size", mutate: func(c *Config) { c.Intake.MaxBatchSize = 0 }, wantErr: true},
		{name: "webhook without url", mutate: func(c *Config) { c.Bot.Mode = ModeWebhook }, wantErr: true},
		{name: "webhook with url", mutate: func(c *Config) {
			c.Bot.Mode = ModeWebhook
			c.Bot.WebhookURL = "https://bot.example.com"
		}},
		{name: "unknown mode", mutate: func(c *Config) { c.Bot.Mode = "push" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "outreach.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.DrafterModel)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ClassifyModel)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 20, cfg.Governor.DailySendCap)
	assert.Equal(t, 60, cfg.Governor.MinSendIntervalSecs)
	assert.Equal(t, 10, cfg.Governor.MaxBatchSize)
	assert.InDelta(t, 6.0, cfg.Governor.MinICPScore, 0.001)
	assert.InDelta(t, 0.05, cfg.Governor.BounceRateAlert, 0.001)
	assert.InDelta(t, 0.01, cfg.Governor.ComplaintRateAlert, 0.001)
	assert.Equal(t, 3600, cfg.Governor.BounceCooldownSecs)
	assert.Equal(t, 1, cfg.Scrape.MaxDepth)
	assert.Equal(t, 30, cfg.Scrape.MaxPages)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/outreach
log:
  level: debug
  format: console
governor:
  daily_send_cap: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/outreach", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Governor.DailySendCap)
	// Untouched defaults survive a partial file.
	assert.Equal(t, 10, cfg.Governor.MaxBatchSize)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("OUTREACH_ANTHROPIC_KEY", "sk-test")
	t.Setenv("OUTREACH_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestValidateListsEveryProblem(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{Driver: "mysql"},
	}

	problems := cfg.Validate()

	// Missing key, bad driver, zero caps: all reported at once.
	require.Len(t, problems, 4)
	assert.Contains(t, problems[0], "anthropic.key")
	assert.Contains(t, problems[1], "store.driver")
}

func TestValidateOK(t *testing.T) {
	cfg := &Config{
		Store:     StoreConfig{Driver: "sqlite", DatabaseURL: "outreach.db"},
		Anthropic: AnthropicConfig{Key: "sk-test"},
		Governor:  GovernorConfig{DailySendCap: 20, MaxBatchSize: 10},
	}

	assert.Empty(t, cfg.Validate())
}

func TestValidateSMTP(t *testing.T) {
	cfg := &Config{}
	problems := cfg.ValidateSMTP()
	require.Len(t, problems, 4)

	cfg.SMTP = SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p", From: "out@example.com"}
	assert.Empty(t, cfg.ValidateSMTP())
}

func TestValidateMailbox(t *testing.T) {
	cfg := &Config{}
	assert.Len(t, cfg.ValidateMailbox(), 2)

	cfg.Mailbox = MailboxConfig{BaseURL: "https://mail.example.com", Token: "tok"}
	assert.Empty(t, cfg.ValidateMailbox())
}

func TestValidateSalesforce(t *testing.T) {
	cfg := &Config{}
	assert.Len(t, cfg.ValidateSalesforce(), 3)

	cfg.Salesforce = SalesforceConfig{Domain: "https://example.my.salesforce.com", ClientID: "id", ClientSecret: "secret"}
	assert.Empty(t, cfg.ValidateSalesforce())
}

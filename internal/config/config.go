package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	SMTP       SMTPConfig       `yaml:"smtp" mapstructure:"smtp"`
	Mailbox    MailboxConfig    `yaml:"mailbox" mapstructure:"mailbox"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Governor   GovernorConfig   `yaml:"governor" mapstructure:"governor"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Sender     SenderConfig     `yaml:"sender" mapstructure:"sender"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	DrafterModel  string `yaml:"drafter_model" mapstructure:"drafter_model"`
	ClassifyModel string `yaml:"classify_model" mapstructure:"classify_model"`
	AnalyzeModel  string `yaml:"analyze_model" mapstructure:"analyze_model"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
}

// MailboxConfig holds reply-mailbox API settings.
type MailboxConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// SalesforceConfig holds Salesforce client-credentials auth settings.
type SalesforceConfig struct {
	Domain       string `yaml:"domain" mapstructure:"domain"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

// GovernorConfig configures send-safety limits.
type GovernorConfig struct {
	DailySendCap        int     `yaml:"daily_send_cap" mapstructure:"daily_send_cap"`
	MinSendIntervalSecs int     `yaml:"min_send_interval_secs" mapstructure:"min_send_interval_secs"`
	MaxBatchSize        int     `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	MinICPScore         float64 `yaml:"min_icp_score" mapstructure:"min_icp_score"`
	BounceRateAlert     float64 `yaml:"bounce_rate_alert" mapstructure:"bounce_rate_alert"`
	ComplaintRateAlert  float64 `yaml:"complaint_rate_alert" mapstructure:"complaint_rate_alert"`
	BounceCooldownSecs  int     `yaml:"bounce_cooldown_secs" mapstructure:"bounce_cooldown_secs"`
}

// ScrapeConfig configures the site crawl stage.
type ScrapeConfig struct {
	MaxDepth    int `yaml:"max_depth" mapstructure:"max_depth"`
	MaxPages    int `yaml:"max_pages" mapstructure:"max_pages"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SenderConfig configures the send command.
type SenderConfig struct {
	// TestAddress receives test sends when --to is not given.
	TestAddress string `yaml:"test_address" mapstructure:"test_address"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.drafter_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.analyze_model", "claude-haiku-4-5-20251001")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("governor.daily_send_cap", 20)
	v.SetDefault("governor.min_send_interval_secs", 60)
	v.SetDefault("governor.max_batch_size", 10)
	v.SetDefault("governor.min_icp_score", 6.0)
	v.SetDefault("governor.bounce_rate_alert", 0.05)
	v.SetDefault("governor.complaint_rate_alert", 0.01)
	v.SetDefault("governor.bounce_cooldown_secs", 3600)
	v.SetDefault("scrape.max_depth", 1)
	v.SetDefault("scrape.max_pages", 30)
	v.SetDefault("scrape.timeout_secs", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields every command needs. It returns one
// message per missing or invalid field so startup can list them all
// before exiting, rather than failing on the first.
func (c *Config) Validate() []string {
	var problems []string

	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required (OUTREACH_ANTHROPIC_KEY)")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required (OUTREACH_STORE_DATABASE_URL)")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Governor.DailySendCap <= 0 {
		problems = append(problems, "governor.daily_send_cap must be positive")
	}
	if c.Governor.MaxBatchSize <= 0 {
		problems = append(problems, "governor.max_batch_size must be positive")
	}

	return problems
}

// ValidateSMTP checks the fields the send path needs.
func (c *Config) ValidateSMTP() []string {
	var problems []string
	if c.SMTP.Host == "" {
		problems = append(problems, "smtp.host is required (OUTREACH_SMTP_HOST)")
	}
	if c.SMTP.User == "" {
		problems = append(problems, "smtp.user is required (OUTREACH_SMTP_USER)")
	}
	if c.SMTP.Password == "" {
		problems = append(problems, "smtp.password is required (OUTREACH_SMTP_PASSWORD)")
	}
	if c.SMTP.From == "" {
		problems = append(problems, "smtp.from is required (OUTREACH_SMTP_FROM)")
	}
	return problems
}

// ValidateMailbox checks the fields the reply monitor needs.
func (c *Config) ValidateMailbox() []string {
	var problems []string
	if c.Mailbox.BaseURL == "" {
		problems = append(problems, "mailbox.base_url is required (OUTREACH_MAILBOX_BASE_URL)")
	}
	if c.Mailbox.Token == "" {
		problems = append(problems, "mailbox.token is required (OUTREACH_MAILBOX_TOKEN)")
	}
	return problems
}

// ValidateSalesforce checks the fields the CRM push needs.
func (c *Config) ValidateSalesforce() []string {
	var problems []string
	if c.Salesforce.Domain == "" {
		problems = append(problems, "salesforce.domain is required (OUTREACH_SALESFORCE_DOMAIN)")
	}
	if c.Salesforce.ClientID == "" {
		problems = append(problems, "salesforce.client_id is required (OUTREACH_SALESFORCE_CLIENT_ID)")
	}
	if c.Salesforce.ClientSecret == "" {
		problems = append(problems, "salesforce.client_secret is required (OUTREACH_SALESFORCE_CLIENT_SECRET)")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

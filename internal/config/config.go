package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Bot        BotConfig
	Telegram   TelegramConfig
	DiscordBot DiscordBotConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
	SMTP       SMTPConfig
	Gemini     GeminiConfig
	PromptPay  PromptPayConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

// BotConfig selects the transport and store
type BotConfig struct {
	Transport   string // telegram or discord
	Store       string // postgres, mongo or memory
	MaxInFlight int
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token       string
	PollTimeout int
}

// DiscordBotConfig holds Discord bot configuration
type DiscordBotConfig struct {
	Token string
}

// PostgreSQLConfig holds database configuration
type PostgreSQLConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	Schema       string
	PoolMaxConns int
}

// MongoDBConfig holds document database configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// GeminiConfig holds advisory model configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// PromptPayConfig holds the account payment requests are made out to
type PromptPayConfig struct {
	MerchantID string
}

// MetricsConfig holds the Prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Initialize sets viper defaults and environment overrides. Call it before
// binding flags and before Load.
func Initialize() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("Bot.Transport", "telegram")
	viper.SetDefault("Bot.Store", "mongo")
	viper.SetDefault("Bot.MaxInFlight", 64)

	// Keys without a useful default still need registering so that
	// environment variables reach Unmarshal when no file sets them.
	for _, key := range []string{
		"Telegram.Token",
		"DiscordBot.Token",
		"PostgreSQL.Password",
		"SMTP.Host", "SMTP.User", "SMTP.Password", "SMTP.From",
		"Gemini.APIKey",
		"PromptPay.MerchantID",
		"Metrics.Addr",
	} {
		viper.SetDefault(key, "")
	}

	viper.SetDefault("Telegram.PollTimeout", 60)

	viper.SetDefault("PostgreSQL.Host", "localhost")
	viper.SetDefault("PostgreSQL.Port", 5432)
	viper.SetDefault("PostgreSQL.User", "postgres")
	viper.SetDefault("PostgreSQL.DBName", "budgetbuddy")
	viper.SetDefault("PostgreSQL.Schema", "public")
	viper.SetDefault("PostgreSQL.PoolMaxConns", 10)

	viper.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	viper.SetDefault("MongoDB.Database", "budgetbuddy")

	viper.SetDefault("SMTP.Port", 587)

	viper.SetDefault("Gemini.Model", "gemini-2.0-flash")
	viper.SetDefault("Gemini.Timeout", 30*time.Second)

	viper.SetDefault("Logging.Level", "info")
	viper.SetDefault("Logging.Format", "json")
}

// Load reads the config file (configPath, or config.yaml in the working
// directory). A missing default file is not an error so that
// environment-only deployments work. Callers validate the parts they need.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config into struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the selected transport and store are configured.
func (c *Config) Validate() error {
	switch c.Bot.Transport {
	case "telegram":
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram bot token is required")
		}
	case "discord":
		if c.DiscordBot.Token == "" {
			return fmt.Errorf("discord bot token is required")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Bot.Transport)
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.SMTP.Host == "" || c.SMTP.From == "" {
		return fmt.Errorf("smtp configuration is incomplete")
	}
	return nil
}

// ValidateStore checks only the store settings, which is all migrate needs.
func (c *Config) ValidateStore() error {
	switch c.Bot.Store {
	case "postgres":
		if c.PostgreSQL.Host == "" || c.PostgreSQL.DBName == "" {
			return fmt.Errorf("database configuration is incomplete")
		}
	case "mongo":
		if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
			return fmt.Errorf("mongodb configuration is incomplete")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store %q", c.Bot.Store)
	}
	return nil
}

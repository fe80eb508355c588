// Package config provides configuration management for the weekly report.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/leeaandrob/weeklyreport/internal/discord"
	"github.com/leeaandrob/weeklyreport/internal/week"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	// LLM settings
	LLMProvider    string `validate:"oneof=openai anthropic gemini"`
	LLMAPIKey      string
	LLMBaseURL     string `validate:"omitempty,url"`
	LLMModel       string
	LLMTemperature float64       `validate:"gte=0,lte=2"`
	LLMMaxTokens   int           `validate:"gte=0"`
	LLMTimeout     time.Duration `validate:"gte=0"`

	// Discord settings
	DiscordWebhookURL string `validate:"omitempty,url"`
	DiscordUsername   string

	// Data APIs
	EODHDAPIKey      string
	TavilyAPIKey     string
	EnableEnrichment bool

	// MongoDB settings (empty URI keeps the ledger in memory)
	MongoURI string
	MongoDB  string

	// Report settings
	WeekPolicy      string
	Timezone        string
	MessageLimit    int           `validate:"gt=0"`
	MessageDelay    time.Duration `validate:"gte=0"`
	NotifyFailures  bool
	SkipIfDelivered bool
	ReportFile      string

	// Server settings
	Schedule string `validate:"required"`
	HTTPAddr string
	Debug    bool

	// Report is loaded from ReportFile, or DefaultReport when unset.
	Report *ReportDefinition `validate:"-"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Try to load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg := &Config{
		// LLM
		LLMProvider:    getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:      getEnv("LLM_API_KEY", os.Getenv("XAI_API_KEY")),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", ""),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4096),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 3*time.Minute),

		// Discord
		DiscordWebhookURL: getEnv("DISCORD_WEB_HOOK", ""),
		DiscordUsername:   getEnv("DISCORD_USERNAME", ""),

		// Data APIs
		EODHDAPIKey:      getEnv("EODHD_API_KEY", ""),
		TavilyAPIKey:     getEnv("TAVILY_API_KEY", ""),
		EnableEnrichment: getEnvBool("ENABLE_ENRICHMENT", true),

		// MongoDB
		MongoURI: getEnv("MONGO_URI", ""),
		MongoDB:  getEnv("MONGO_DB", "weeklyreport"),

		// Report
		WeekPolicy:      getEnv("WEEK_POLICY", "strict"),
		Timezone:        getEnv("TIMEZONE", "Asia/Tokyo"),
		MessageLimit:    getEnvInt("MESSAGE_LIMIT", 1900),
		MessageDelay:    getEnvDuration("MESSAGE_DELAY", time.Second),
		NotifyFailures:  getEnvBool("NOTIFY_FAILURES", false),
		SkipIfDelivered: getEnvBool("SKIP_IF_DELIVERED", false),
		ReportFile:      getEnv("REPORT_FILE", ""),

		// Server
		Schedule: getEnv("SCHEDULE", "0 10 * * 1"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Debug:    getEnvBool("DEBUG", false),
	}

	if cfg.ReportFile != "" {
		def, err := LoadReport(cfg.ReportFile)
		if err != nil {
			return nil, err
		}
		cfg.Report = def
	} else {
		cfg.Report = DefaultReport()
	}

	return cfg, nil
}

// Validate checks the configuration. Missing credentials only produce
// warnings so that preview and week commands work without them.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.MessageLimit > discord.MaxContentLength {
		return fmt.Errorf("MESSAGE_LIMIT %d exceeds the discord limit of %d", c.MessageLimit, discord.MaxContentLength)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Report == nil {
		return fmt.Errorf("report definition is missing")
	}
	if err := c.Report.Validate(); err != nil {
		return err
	}

	if c.LLMAPIKey == "" {
		log.Warn().Str("provider", c.LLMProvider).Msg("LLM_API_KEY not set, report generation will fail")
	}
	if c.DiscordWebhookURL == "" {
		log.Warn().Msg("DISCORD_WEB_HOOK not set, only dry runs are possible")
	}
	if c.EODHDAPIKey == "" {
		log.Warn().Msg("EODHD_API_KEY not set, market snapshot will be omitted")
	}
	return nil
}

// Policy parses WeekPolicy.
func (c *Config) Policy() (week.Policy, error) {
	p, err := week.ParsePolicy(c.WeekPolicy)
	if err != nil {
		return week.Policy{}, fmt.Errorf("WEEK_POLICY: %w", err)
	}
	return p, nil
}

// Location loads Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

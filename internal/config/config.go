// Package config loads the two configuration layers of the application:
// runtime settings from the environment and the closing configuration from
// a TOML file. Both are immutable value types validated at load time.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Closing configuration file (TOML)
	ClosingConfigPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Insight provider
	GeminiModel    string
	InsightTimeout time.Duration

	// Snapshot mirror (Google Sheets)
	MirrorSpreadsheetID   string
	MirrorSheetName       string
	GoogleCredentialsFile string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/persacc.db"),

		ClosingConfigPath: getEnv("CLOSING_CONFIG_PATH", "./data/closing.toml"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "persacc"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "period_closed"),

		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		InsightTimeout: getEnvDuration("INSIGHT_TIMEOUT", 30*time.Second),

		MirrorSpreadsheetID:   getEnv("MIRROR_SPREADSHEET_ID", ""),
		MirrorSheetName:       getEnv("MIRROR_SHEET_NAME", "Closings"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
	}
}

// Validate checks the runtime configuration and collects every problem into
// a single error.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	}
	if c.ClosingConfigPath == "" {
		problems = append(problems, "closing configuration path cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL %q: %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.InsightTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("invalid insight timeout %v: must be at least 1 second", c.InsightTimeout))
	}

	if c.MirrorSpreadsheetID != "" && c.MirrorSheetName == "" {
		problems = append(problems, "mirror sheet name cannot be empty when a spreadsheet ID is provided")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

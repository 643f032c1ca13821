package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigin  string
	RateLimitPerMinute int

	LogLevel string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Splitwise
	SplitwiseBaseURL        string
	SplitwiseTimeout        time.Duration
	SplitwiseImportInterval time.Duration
	SplitwiseImportLookback time.Duration

	// Receipt parsing
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	ReceiptMaxBytes int

	// Statistics cache
	StatsCacheTTL  time.Duration
	StatsCacheSize int

	// Worker
	RecurringInterval time.Duration
	WorkerConcurrency int

	// Spreadsheet mirror
	MirrorBackend            string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		CORSAllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "*"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expensa.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensa"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expensa_jobs"),

		SplitwiseBaseURL:        getEnv("SPLITWISE_BASE_URL", "https://secure.splitwise.com/api/v3.0"),
		SplitwiseTimeout:        getEnvDuration("SPLITWISE_TIMEOUT", 10*time.Second),
		SplitwiseImportInterval: getEnvDuration("SPLITWISE_IMPORT_INTERVAL", time.Hour),
		SplitwiseImportLookback: getEnvDuration("SPLITWISE_IMPORT_LOOKBACK", 8*time.Hour),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ReceiptMaxBytes: getEnvInt("RECEIPT_MAX_BYTES", 8<<20),

		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),
		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 256),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		MirrorBackend:            getEnv("MIRROR_BACKEND", "none"),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for name, raw := range map[string]string{"Splitwise base URL": c.SplitwiseBaseURL, "Gemini base URL": c.GeminiBaseURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s'", name, raw))
		}
	}
	if c.SplitwiseTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid Splitwise timeout %v: must be positive", c.SplitwiseTimeout))
	}

	if c.ReceiptMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid receipt max bytes %d: must be at least 1024", c.ReceiptMaxBytes))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must be at least 1 second", c.StatsCacheTTL))
	}

	// Validate worker configuration
	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}
	if c.SplitwiseImportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid Splitwise import interval %v: must be at least 1 minute", c.SplitwiseImportInterval))
	}
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be between 1 and 64", c.WorkerConcurrency))
	}

	// Validate spreadsheet mirror
	validMirrors := []string{"none", "memory", "sheets"}
	isValidMirror := false
	for _, m := range validMirrors {
		if c.MirrorBackend == m {
			isValidMirror = true
			break
		}
	}
	if !isValidMirror {
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of %v", c.MirrorBackend, validMirrors))
	}
	if c.MirrorBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets mirror")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets mirror")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ReceiptParsingEnabled reports whether a model API key is configured.
func (c *Config) ReceiptParsingEnabled() bool {
	return c.GeminiAPIKey != ""
}

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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

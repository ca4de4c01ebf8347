package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	// Telegram
	TelegramToken     string `env:"TELEGRAM_BOT_TOKEN"`
	BotWorkers        int    `env:"BOT_WORKERS" validate:"min=1,max=256"`
	MessagesPerMinute int    `env:"MESSAGES_PER_MINUTE" validate:"min=1"`

	// Health endpoints
	HealthPort string `env:"HEALTH_PORT" validate:"required"`

	// Ledger
	DataBackend     string        `env:"DATA_BACKEND" validate:"oneof=sqlite memory"`
	SQLiteDBPath    string        `env:"SQLITE_DB_PATH" validate:"required_if=DataBackend sqlite"`
	DefaultCurrency string        `env:"DEFAULT_CURRENCY" validate:"iso4217"`
	StatsCacheTTL   time.Duration `env:"STATS_CACHE_TTL" validate:"min=0s,max=24h"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL" validate:"omitempty,url"`
	AMQPExchange string `env:"AMQP_EXCHANGE" validate:"required_with=AMQPURL"`
	AMQPQueue    string `env:"AMQP_QUEUE" validate:"required_with=AMQPURL"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Worker
	SyncBatchSize int           `env:"SYNC_BATCH_SIZE" validate:"min=1,max=1000"`
	SyncInterval  time.Duration `env:"SYNC_INTERVAL" validate:"min=1s,max=24h"`

	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

func Load() *Config {
	cfg := &Config{
		TelegramToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		BotWorkers:        getEnvInt("BOT_WORKERS", 8),
		MessagesPerMinute: getEnvInt("MESSAGES_PER_MINUTE", 30),

		HealthPort: getEnv("HEALTH_PORT", "8081"),

		DataBackend:     getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/finance.db"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "RUB")),
		StatsCacheTTL:   getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finbot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_transactions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if port, err := strconv.Atoi(c.HealthPort); c.HealthPort != "" && err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.HealthPort))
	} else if c.HealthPort != "" && (port < 1 || port > 65535) {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err == nil && parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// ValidateBot additionally requires the settings only the bot process needs.
func (c *Config) ValidateBot() error {
	err := c.Validate()
	if c.TelegramToken != "" {
		return err
	}
	const missing = "TELEGRAM_BOT_TOKEN is required"
	if err == nil {
		return fmt.Errorf("configuration validation failed:\n- %s", missing)
	}
	return fmt.Errorf("%w\n- %s", err, missing)
}

// ValidateWorker additionally requires the sheet mirror settings.
func (c *Config) ValidateWorker() error {
	var missing []string
	if c.GoogleSpreadsheetID == "" {
		missing = append(missing, "GOOGLE_SPREADSHEET_ID is required")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		missing = append(missing, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.AMQPURL == "" {
		missing = append(missing, "AMQP_URL is required")
	}
	if c.DataBackend != "sqlite" {
		missing = append(missing, "the worker requires DATA_BACKEND=sqlite")
	}
	err := c.Validate()
	if len(missing) == 0 {
		return err
	}
	if err == nil {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(missing, "\n- "))
	}
	return fmt.Errorf("%w\n- %s", err, strings.Join(missing, "\n- "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("iso4217", func(fl validator.FieldLevel) bool {
		return validCurrencies[fl.Field().String()]
	})
	return v
}

var validCurrencies = map[string]bool{
	"RUB": true, "USD": true, "EUR": true, "GBP": true, "KZT": true,
	"BYN": true, "UAH": true, "CNY": true, "TRY": true, "GEL": true,
	"AMD": true, "UZS": true, "KGS": true, "AZN": true, "CHF": true,
	"JPY": true, "INR": true, "AED": true, "THB": true, "RSD": true,
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("%s is required", name)
	case "oneof":
		return fmt.Sprintf("invalid %s '%v': must be one of [%s]", name, fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("invalid %s %v: must be at least %s", name, fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("invalid %s %v: must be at most %s", name, fe.Value(), fe.Param())
	case "url":
		return fmt.Sprintf("invalid %s '%v': must be a URL", name, fe.Value())
	case "iso4217":
		return fmt.Sprintf("invalid %s '%v': unsupported currency", name, fe.Value())
	default:
		return fmt.Sprintf("invalid %s '%v': failed %s", name, fe.Value(), fe.Tag())
	}
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

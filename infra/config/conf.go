package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mstgnz/mediapay/infra/validate"
)

type CKey string

// RequestIDKey is the context key carrying the inbound request id
const RequestIDKey CKey = "request_id"

type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port           string
	Environment    string
	AppURL         string
	APIKey         string
	DBDriver       string
	DBDSN          string
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	LoggingLevel   string
	RefundTimeout  time.Duration
	RefundRetries  int
	OperatorID     string
	RateLimit      int
	AllowedOrigins []string
}

var (
	instance          *Config
	appConfigInstance *AppConfig
	appOnce           sync.Once
	appConfigMu       sync.Mutex
)

func App() *Config {
	appOnce.Do(func() {
		instance = &Config{
			Validator: validate.New(),
		}
	})
	return instance
}

// LoadDotEnv loads variables from the given files when they exist. Values already set in
// the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	appConfigMu.Lock()
	defer appConfigMu.Unlock()
	if appConfigInstance == nil {
		appConfigInstance = loadAppConfig()
	}
	return appConfigInstance
}

// ResetAppConfig drops the cached configuration so the next GetAppConfig re-reads the environment
func ResetAppConfig() {
	appConfigMu.Lock()
	defer appConfigMu.Unlock()
	appConfigInstance = nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Port:           GetEnv("APP_PORT", "9999"),
		Environment:    GetEnv("ENVIRONMENT", "development"),
		AppURL:         GetEnv("APP_URL", "http://localhost:9999"),
		APIKey:         GetEnv("API_KEY", ""),
		DBDriver:       strings.ToLower(GetEnv("DB_DRIVER", "sqlite")),
		DBDSN:          GetEnv("DB_DSN", "./data/mediapay.db"),
		OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
		LoggingLevel:   GetEnv("LOGGING_LEVEL", "info"),
		RefundTimeout:  GetDurationEnv("REFUND_TIMEOUT", 15*time.Second),
		RefundRetries:  GetIntEnv("REFUND_RETRIES", 2),
		OperatorID:     GetEnv("OPERATOR_ID", "system"),
		RateLimit:      GetIntEnv("RATE_LIMIT_PER_MINUTE", 100),
		AllowedOrigins: GetListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv returns the duration value of an environment variable or a default value
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetListEnv splits a comma separated environment variable
func GetListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	LLM        LLMConfig
	Chat       ChatConfig
	Monitoring MonitoringConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	Mode         string // "debug" or "release"
	DebugEnabled bool
	EnableCORS   bool
}

type DatabaseConfig struct {
	URL            string // Full connection URL override (takes precedence over host:port)
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
	ConnTimeout    time.Duration
}

// AuthConfig holds the bearer-token verification keys. Tokens are verified
// against JWTSecret first, then ServiceRoleKey, then AnonKey.
type AuthConfig struct {
	JWTSecret      string
	ServiceRoleKey string
	AnonKey        string
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	SiteURL     string
	SiteName    string
}

type ChatConfig struct {
	MaxConversationLength   int
	MaxConversationsPerUser int
}

type MonitoringConfig struct {
	MetricsEnabled bool
	MetricsPath    string
	LogLevel       string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("HOST", "0.0.0.0"),
			Port:         getEnv("PORT", "8000"),
			Mode:         getEnv("GIN_MODE", "release"),
			DebugEnabled: getBoolEnv("DEBUG", false),
			EnableCORS:   getBoolEnv("CORS_ENABLED", true),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "manna"),
			Password:       getEnv("DB_PASSWORD", "secret"),
			Name:           getEnv("DB_NAME", "manna_db"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getIntEnv("DB_MAX_CONNECTIONS", 20),
			ConnTimeout:    getDurationEnv("DB_CONN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			ServiceRoleKey: getEnv("SERVICE_ROLE_KEY", ""),
			AnonKey:        getEnv("ANON_KEY", ""),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:     getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnv("OPENROUTER_MODEL", "deepseek/deepseek-chat"),
			MaxTokens:   getIntEnv("MAX_TOKENS", 1000),
			Temperature: getFloatEnv("TEMPERATURE", 0.7),
			Timeout:     getDurationEnv("LLM_TIMEOUT", 60*time.Second),
			SiteURL:     getEnv("SITE_URL", ""),
			SiteName:    getEnv("SITE_NAME", ""),
		},
		Chat: ChatConfig{
			MaxConversationLength:   getIntEnv("MAX_CONVERSATION_LENGTH", 50),
			MaxConversationsPerUser: getIntEnv("MAX_CONVERSATIONS_PER_USER", 20),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
			MetricsPath:    getEnv("METRICS_PATH", "/metrics"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
	}
}

// ConnString builds the PostgreSQL connection string. The DATABASE_URL
// override takes precedence over the individual host/port fields.
func (d *DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

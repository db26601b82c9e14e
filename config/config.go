package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAccessTokenTTL is the lifetime of an access token and its cookie.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the single canonical refresh lifetime, used for
	// both the JWT expiry and the refresh cookie Max-Age.
	DefaultRefreshTokenTTL = 15 * 24 * time.Hour
)

type Config struct {
	ServerPort int
	Database   DatabaseConfig
	Auth       AuthConfig
	Log        LogConfig
	MQ         MQConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	CookieSecure       bool
}

type LogConfig struct {
	Level string
	Dev   bool
}

// MQConfig selects the broker used for security events.
// Provider is one of "none", "memory", "rabbitmq" or "pubsub".
type MQConfig struct {
	Provider string
	Channel  string
	// PublishTimeout bounds each event publish, detached from the request.
	PublishTimeout time.Duration
	RabbitMQ       RabbitMQConfig
	PubSub         PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "devsketch"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "devsketch_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	authConfig := AuthConfig{
		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", DefaultAccessTokenTTL),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", DefaultRefreshTokenTTL),
		CookieSecure:       getEnvBool("COOKIE_SECURE", os.Getenv("ENV") == "production"),
	}

	logDev := getEnvBool("LOG_DEV", false)
	logLevel := getEnv("LOG_LEVEL", "")
	if logLevel == "" {
		logLevel = "info"
		if logDev {
			logLevel = "debug"
		}
	}

	mqConfig := MQConfig{
		Provider:       strings.ToLower(getEnv("MQ_PROVIDER", "none")),
		Channel:        getEnv("MQ_EVENTS_CHANNEL", "security-events"),
		PublishTimeout: getEnvDuration("MQ_PUBLISH_TIMEOUT", 5*time.Second),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Database:   dbConfig,
		Auth:       authConfig,
		Log:        LogConfig{Level: logLevel, Dev: logDev},
		MQ:         mqConfig,
	}
}

// Validate reports configuration that the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.AccessTokenSecret) == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if strings.TrimSpace(c.Auth.RefreshTokenSecret) == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch c.MQ.Provider {
	case "none", "memory", "rabbitmq", "pubsub":
	default:
		return fmt.Errorf("unknown MQ_PROVIDER %q", c.MQ.Provider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

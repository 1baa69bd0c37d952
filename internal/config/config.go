package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Environment string

	Server  ServerConfig
	Logging LoggingConfig
	OTP     OTPConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Seed    SeedConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// OTPConfig controls passcode generation and delivery defaults.
type OTPConfig struct {
	CodeLength    int
	ExpiryMinutes int
	Alphanumeric  bool
	// Store selects the challenge store backend: "memory" or "redis".
	Store string
	// LockStripes is the number of per-account mutex stripes.
	LockStripes int
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// SeedConfig optionally provisions one account at startup so the demo
// flow works against an empty store.
type SeedConfig struct {
	Enabled  bool
	Username string
	Email    string
	Password string
}

// LoadConfig reads configuration from the environment, consulting an
// optional .env file first. Every value has a default so the server can
// start with no external services configured.
func LoadConfig() *Config {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		OTP: OTPConfig{
			CodeLength:    getEnvInt("OTP_CODE_LENGTH", 6),
			ExpiryMinutes: getEnvInt("OTP_EXPIRY_MINUTES", 10),
			Alphanumeric:  getEnvBool("OTP_ALPHANUMERIC", false),
			Store:         getEnv("OTP_STORE", "memory"),
			LockStripes:   getEnvInt("OTP_LOCK_STRIPES", 64),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_SECURITY_EVENTS_TOPIC", "security-events"),
		},
		Seed: SeedConfig{
			Enabled:  getEnvBool("SEED_ENABLED", true),
			Username: getEnv("SEED_USERNAME", "admin"),
			Email:    getEnv("SEED_EMAIL", "admin@example.com"),
			Password: getEnv("SEED_PASSWORD", "password123"),
		},
	}
}

// GetServerAddress returns host:port for the HTTP listener.
func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}

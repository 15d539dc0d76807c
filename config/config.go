package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	Env              string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	RedisURL         string
	StripeSecretKey  string
	ProviderBaseURL  string // external payment-status API, used when Stripe is not the provider
	ProviderAPIKey   string
	KafkaBrokers     string
	KafkaTopic       string
	JWTSecret        string

	// Payment windows are explicit per session kind; the payment
	// machinery itself never defaults them.
	DepositWindow   time.Duration
	ExtensionWindow time.Duration
	PollInterval    time.Duration
	ConfirmDelay    time.Duration
	QRCodeSize      int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		RedisURL:         getEnv("REDIS_URL", ""),
		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		ProviderBaseURL:  os.Getenv("PAYMENT_PROVIDER_BASE_URL"),
		ProviderAPIKey:   os.Getenv("PAYMENT_PROVIDER_API_KEY"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:       getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DepositWindow:    getEnvSeconds("DEPOSIT_WINDOW_SECONDS", 900),
		ExtensionWindow:  getEnvSeconds("EXTENSION_WINDOW_SECONDS", 900),
		PollInterval:     getEnvSeconds("PAYMENT_POLL_INTERVAL_SECONDS", 5),
		ConfirmDelay:     getEnvSeconds("PAYMENT_CONFIRM_DELAY_SECONDS", 2),
		QRCodeSize:       getEnvInt("PAYMENT_QR_SIZE", 256),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("missing required Postgres environment variables")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}
	if cfg.StripeSecretKey == "" && cfg.ProviderBaseURL == "" {
		return nil, fmt.Errorf("no payment provider configured: set STRIPE_API_KEY or PAYMENT_PROVIDER_BASE_URL")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

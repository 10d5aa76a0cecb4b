package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "WalletPay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultGatewayTimeout = 30 * time.Second
	defaultPendingTTL     = 2 * time.Hour
	defaultSweepInterval  = 15 * time.Minute

	defaultGatewayURL     = "https://bpm.shaparak.ir/pgwchannel/services/pgw"
	defaultPaymentPageURL = "https://bpm.shaparak.ir/pgwchannel/startpay.mellat"
)

// Gateway holds the merchant credentials and endpoints for the bank
// payment gateway. Credentials are never logged.
type Gateway struct {
	TerminalID     string
	Username       string
	Password       string
	EndpointURL    string
	PaymentPageURL string
	Timeout        time.Duration
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	PublicBaseURL   string
	FrontendBaseURL string
	Gateway         Gateway
	PendingTTL      time.Duration
	SweepInterval   time.Duration
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		PublicBaseURL:   os.Getenv("PUBLIC_BASE_URL"),
		FrontendBaseURL: os.Getenv("FRONTEND_URL"),
		Gateway: Gateway{
			TerminalID:     os.Getenv("BANK_TERMINAL_ID"),
			Username:       os.Getenv("BANK_USERNAME"),
			Password:       os.Getenv("BANK_PASSWORD"),
			EndpointURL:    getEnv("BANK_GATEWAY_URL", defaultGatewayURL),
			PaymentPageURL: getEnv("BANK_PAYMENT_URL", defaultPaymentPageURL),
			Timeout:        defaultGatewayTimeout,
		},
		PendingTTL:     defaultPendingTTL,
		SweepInterval:  defaultSweepInterval,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
	}

	var err error
	if cfg.Gateway.Timeout, err = durationEnv("BANK_TIMEOUT", cfg.Gateway.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.PendingTTL, err = durationEnv("PENDING_TOPUP_TTL", cfg.PendingTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("TOPUP_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.PublicBaseURL == "" {
		return Config{}, fmt.Errorf("PUBLIC_BASE_URL must be set")
	}
	if cfg.FrontendBaseURL == "" {
		return Config{}, fmt.Errorf("FRONTEND_URL must be set")
	}
	if cfg.Gateway.TerminalID == "" || cfg.Gateway.Username == "" || cfg.Gateway.Password == "" {
		return Config{}, fmt.Errorf("BANK_TERMINAL_ID, BANK_USERNAME and BANK_PASSWORD must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// durationEnv reads KEY_SECONDS as an integer second count or KEY as a
// Go duration string, preferring the seconds form when both are set.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

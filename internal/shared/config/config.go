package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	StoreDriver string
	SQLitePath  string
	JWTSecret   string

	ResetSchedule    string
	ResetMaxAttempts int
	TxMaxRetries     int

	RateLimitRPS   float64
	RateLimitBurst int

	BonusFree       int64
	BonusBeta       int64
	BonusSubscriber int64
	BetaDays        int

	ReferralSignupBonus        int64
	ReferralFirstPurchaseBonus int64
	PublicBaseURL              string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️ .env file not found, using system environment variables")
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StoreDriver: strings.ToLower(os.Getenv("STORE_DRIVER")),
		SQLitePath:  getEnv("SQLITE_PATH", "credits.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		ResetSchedule:    getEnv("RESET_SCHEDULE", "0 0 0 1 * *"),
		ResetMaxAttempts: getInt("RESET_MAX_ATTEMPTS", 3),
		TxMaxRetries:     getInt("TX_MAX_RETRIES", 5),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),

		BonusFree:       getInt64("BONUS_FREE", 5),
		BonusBeta:       getInt64("BONUS_BETA", 10),
		BonusSubscriber: getInt64("BONUS_SUBSCRIBER", 25),
		BetaDays:        getInt("BETA_DAYS", 90),

		ReferralSignupBonus:        getInt64("REFERRAL_SIGNUP_BONUS", 5),
		ReferralFirstPurchaseBonus: getInt64("REFERRAL_FIRST_PURCHASE_BONUS", 20),
		PublicBaseURL:              getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	// Default to postgres only when a database URL is configured
	if cfg.StoreDriver == "" {
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = DriverPostgres
		} else {
			cfg.StoreDriver = DriverSQLite
		}
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("⚠️ Invalid integer, using default")
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	return int64(getInt(key, int(fallback)))
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("⚠️ Invalid number, using default")
		return fallback
	}
	return f
}

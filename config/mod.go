package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	APIBaseURL         string
	DeliveryServiceURL string
	UpstreamTimeout    time.Duration

	DatabaseURL string
	DBName      string
	RedisURL    string
	Secret      string

	EventSink    string
	KafkaBrokers []string
	KafkaTopic   string

	FreeDeliveryThreshold decimal.Decimal
	GuestSessionTTL       time.Duration
	AllowedOrigins        []string

	RateLimit       uint
	RateLimitWindow time.Duration
}

// LoadEnv reads ENV_FILE (default .env) into the environment. A missing
// file only means the process environment is used as is.
func LoadEnv() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		util.LogInfo("no env file loaded, using process environment", zap.String("file", envFile))
	}
}

// Load builds the configuration from the environment. Only the commerce
// API base URL has no default.
func Load() (Config, error) {
	LoadEnv()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Port:               get("PORT", "8080"),
		GinMode:            get("GIN_MODE", "debug"),
		LogLevel:           get("LOG_LEVEL", "info"),
		APIBaseURL:         strings.TrimRight(get("API_BASE_URL", ""), "/"),
		DeliveryServiceURL: strings.TrimRight(get("DELIVERY_SERVICE_URL", ""), "/"),
		DatabaseURL:        get("DATABASE_URL", "mongodb://localhost:27017"),
		DBName:             get("DB_NAME", "khoomi"),
		RedisURL:           get("REDIS_URL", "redis://localhost:6379/0"),
		Secret:             get("SECRET", ""),
		EventSink:          strings.ToLower(get("EVENT_SINK", "redis")),
		KafkaBrokers:       splitList(get("KAFKA_BROKERS", "")),
		KafkaTopic:         get("KAFKA_TOPIC", "checkout-events"),
		AllowedOrigins:     splitList(get("ALLOWED_ORIGINS", "")),
	}
	if cfg.APIBaseURL == "" {
		return Config{}, errors.New("API_BASE_URL is required")
	}

	var err error
	if cfg.UpstreamTimeout, err = duration(get("UPSTREAM_TIMEOUT", ""), common.UPSTREAM_TIMEOUT_SECS); err != nil {
		return Config{}, errors.Wrap(err, "UPSTREAM_TIMEOUT")
	}
	if cfg.GuestSessionTTL, err = duration(get("GUEST_SESSION_TTL", ""), common.GUEST_SESSION_TTL); err != nil {
		return Config{}, errors.Wrap(err, "GUEST_SESSION_TTL")
	}
	if cfg.RateLimitWindow, err = duration(get("RATE_LIMIT_WINDOW", ""), time.Second); err != nil {
		return Config{}, errors.Wrap(err, "RATE_LIMIT_WINDOW")
	}

	limit, err := strconv.ParseUint(get("RATE_LIMIT", "10"), 10, 32)
	if err != nil {
		return Config{}, errors.Wrap(err, "RATE_LIMIT")
	}
	cfg.RateLimit = uint(limit)

	cfg.FreeDeliveryThreshold, err = decimal.NewFromString(get("FREE_DELIVERY_THRESHOLD", "2200"))
	if err != nil || cfg.FreeDeliveryThreshold.IsNegative() {
		return Config{}, errors.Errorf("FREE_DELIVERY_THRESHOLD must be a non-negative amount, got %q", getenv("FREE_DELIVERY_THRESHOLD"))
	}

	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		return Config{}, errors.Errorf("unknown GIN_MODE %q", cfg.GinMode)
	}

	switch cfg.EventSink {
	case "redis", "none":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, errors.New("KAFKA_BROKERS is required when EVENT_SINK=kafka")
		}
	default:
		return Config{}, errors.Errorf("unknown EVENT_SINK %q", cfg.EventSink)
	}

	return cfg, nil
}

func duration(v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the chistes server.
type Config struct {
	DBPath            string
	ServerPort        int
	LogLevel          string
	SentryDSN         string
	Environment       string
	SeedDatabase      bool
	ShutdownGrace     time.Duration
	ChuckAPIURL       string
	DadAPIURL         string
	ProviderUserAgent string
	CombinedJokeCount int
	Timeouts          Timeouts
	RateLimit         RateLimit
}

// Timeouts mirrors the per-category deadlines applied to handlers.
type Timeouts struct {
	Short     time.Duration
	Medium    time.Duration
	Provider  time.Duration
	Aggregate time.Duration
}

// RateLimit configures the per-client token buckets.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath            = "./data/chistes.db"
	defaultServerPort        = 3001
	defaultLogLevel          = "info"
	defaultEnvironment       = "development"
	defaultShutdownGrace     = 10 * time.Second
	defaultChuckAPIURL       = "https://api.chucknorris.io/jokes/random"
	defaultDadAPIURL         = "https://icanhazdadjoke.com/"
	defaultProviderUserAgent = "MiAppChistes/1.0"
	defaultCombinedJokeCount = 5
	defaultTimeoutShort      = 3 * time.Second
	defaultTimeoutMedium     = 8 * time.Second
	defaultTimeoutProvider   = 10 * time.Second
	defaultTimeoutAggregate  = 15 * time.Second
	defaultRateLimitRPS      = 10
	defaultRateLimitBurst    = 20
	defaultRateLimitTTL      = 5 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:            getEnv("DB_PATH", defaultDBPath),
		LogLevel:          getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:         os.Getenv("SENTRY_DSN"),
		Environment:       getEnv("ENV", defaultEnvironment),
		ShutdownGrace:     defaultShutdownGrace,
		ChuckAPIURL:       getEnv("CHUCK_API_URL", defaultChuckAPIURL),
		DadAPIURL:         getEnv("DAD_API_URL", defaultDadAPIURL),
		ProviderUserAgent: getEnv("PROVIDER_USER_AGENT", defaultProviderUserAgent),
	}

	var err error

	if cfg.ServerPort, err = getInt("SERVER_PORT", defaultServerPort); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, eris.Errorf("SERVER_PORT out of range: %d", cfg.ServerPort)
	}

	if cfg.SeedDatabase, err = getBool("SEED_DATABASE", true); err != nil {
		return nil, err
	}

	if cfg.CombinedJokeCount, err = getInt("COMBINED_JOKE_COUNT", defaultCombinedJokeCount); err != nil {
		return nil, err
	}
	if cfg.CombinedJokeCount <= 0 {
		return nil, eris.Errorf("COMBINED_JOKE_COUNT must be positive, got %d", cfg.CombinedJokeCount)
	}

	timeouts := []struct {
		key      string
		fallback time.Duration
		target   *time.Duration
	}{
		{"TIMEOUT_SHORT", defaultTimeoutShort, &cfg.Timeouts.Short},
		{"TIMEOUT_MEDIUM", defaultTimeoutMedium, &cfg.Timeouts.Medium},
		{"TIMEOUT_PROVIDER", defaultTimeoutProvider, &cfg.Timeouts.Provider},
		{"TIMEOUT_AGGREGATE", defaultTimeoutAggregate, &cfg.Timeouts.Aggregate},
		{"RATE_LIMIT_CLIENT_TTL", defaultRateLimitTTL, &cfg.RateLimit.ClientTTL},
	}
	for _, item := range timeouts {
		value, err := getDuration(item.key, item.fallback)
		if err != nil {
			return nil, err
		}
		*item.target = value
	}

	if cfg.RateLimit.Burst, err = getInt("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return nil, err
	}

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.Itoa(defaultRateLimitRPS))
	rps, err := strconv.ParseFloat(rpsValue, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}
	cfg.RateLimit.RequestsPerSecond = rps

	return cfg, nil
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "development")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, strconv.FormatBool(fallback))
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, fallback.String())
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	if value <= 0 {
		return 0, eris.Errorf("%s must be positive, got %s", key, raw)
	}
	return value, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Backend string

const (
	BackendSQLite    Backend = "sqlite"
	BackendPostgres  Backend = "postgres"
	BackendPostgREST Backend = "postgrest"
)

type Config struct {
	ServerPort string
	LogLevel   string
	Backend    Backend

	DBPath      string
	DatabaseURL string

	PostgRESTURL    string
	PostgRESTKey    string
	RealtimeEnabled bool

	KafkaBrokers []string
	KafkaTopic   string

	PrefsPath string
	Location  *time.Location
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}
	return FromEnv(logger)
}

// FromEnv builds the configuration from the current environment only.
func FromEnv(logger zerolog.Logger) (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Backend:         Backend(strings.ToLower(getEnv("BACKEND", string(BackendSQLite)))),
		DBPath:          getEnv("DB_PATH", "scoreboard.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		PostgRESTURL:    strings.TrimRight(getEnv("POSTGREST_URL", ""), "/"),
		PostgRESTKey:    getEnv("POSTGREST_KEY", ""),
		RealtimeEnabled: getBool("REALTIME_ENABLED", true),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "scoreboard-events"),
		PrefsPath:       getEnv("PREFS_PATH", "scoreboard.prefs.json"),
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	switch cfg.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendPostgREST:
		if cfg.PostgRESTURL == "" || cfg.PostgRESTKey == "" {
			return nil, fmt.Errorf("POSTGREST_URL and POSTGREST_KEY are required for the postgrest backend")
		}
	default:
		return nil, fmt.Errorf("unknown BACKEND %q", cfg.Backend)
	}

	logger.Info().
		Str("backend", string(cfg.Backend)).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Location.String()).
		Bool("kafka", len(cfg.KafkaBrokers) > 0).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load)

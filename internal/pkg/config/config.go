package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// OccupancyConfig holds the ingestion policy knobs: the update cooldown and
// the data-based reward tiers.
type OccupancyConfig struct {
	CooldownMinutes       int
	InsufficientThreshold int
	EnoughThreshold       int
	NoDataPoint           int
	InsufficientDataPoint int
	EnoughDataPoint       int
}

// PredictionConfig holds the estimation window and blend parameters for the
// prediction engine.
type PredictionConfig struct {
	FromHour        int
	ToHour          int
	WindowMinutes   int
	Interval        time.Duration
	JitterBound     float64
	CongestionBlend float64
}

// NudgeConfig bounds the trailing window of the activity reminder job:
// readings between AfterMinutes and BeforeMinutes old get a push.
type NudgeConfig struct {
	Interval      time.Duration
	AfterMinutes  int
	BeforeMinutes int
	PushURL       string
	PushTimeout   time.Duration
}

// CongestionConfig configures the city-data congestion poller.
type CongestionConfig struct {
	Interval time.Duration
	APIBase  string
	APIKey   string
	Timeout  time.Duration
}

type Config struct {
	Repositories RepositoriesConfig
	Occupancy    OccupancyConfig
	Prediction   PredictionConfig
	Nudge        NudgeConfig
	Congestion   CongestionConfig
	ServerPort   string
	JWTSecret    string
	Timezone     *time.Location
}

func Load() (*Config, error) {
	loc, err := time.LoadLocation(getEnvOrDefault("APP_TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "cafejari"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		Occupancy: OccupancyConfig{
			CooldownMinutes:       getEnvIntOrDefault("COOLDOWN_MINUTES", 10),
			InsufficientThreshold: getEnvIntOrDefault("OCCUPANCY_INSUFFICIENT_THRESHOLD", 10),
			EnoughThreshold:       getEnvIntOrDefault("OCCUPANCY_ENOUGH_THRESHOLD", 50),
			NoDataPoint:           getEnvIntOrDefault("NO_DATA_POINT", 50),
			InsufficientDataPoint: getEnvIntOrDefault("INSUFFICIENT_DATA_POINT", 20),
			EnoughDataPoint:       getEnvIntOrDefault("ENOUGH_DATA_POINT", 10),
		},
		Prediction: PredictionConfig{
			FromHour:        getEnvIntOrDefault("PREDICTION_FROM_HOUR", 9),
			ToHour:          getEnvIntOrDefault("PREDICTION_TO_HOUR", 23),
			WindowMinutes:   getEnvIntOrDefault("PREDICTION_WINDOW_MINUTES", 80),
			Interval:        time.Duration(getEnvIntOrDefault("PREDICTION_INTERVAL_SEC", 300)) * time.Second,
			JitterBound:     getEnvFloatOrDefault("PREDICTION_JITTER_BOUND", 0.05),
			CongestionBlend: getEnvFloatOrDefault("PREDICTION_CONGESTION_BLEND", 0.05),
		},
		Nudge: NudgeConfig{
			Interval:      time.Duration(getEnvIntOrDefault("NUDGE_INTERVAL_SEC", 300)) * time.Second,
			AfterMinutes:  getEnvIntOrDefault("NUDGE_AFTER_MINUTES", 10),
			BeforeMinutes: getEnvIntOrDefault("NUDGE_BEFORE_MINUTES", 20),
			PushURL:       getEnvOrDefault("NUDGE_PUSH_URL", ""),
			PushTimeout:   time.Duration(getEnvIntOrDefault("NUDGE_PUSH_TIMEOUT_SEC", 5)) * time.Second,
		},
		Congestion: CongestionConfig{
			Interval: time.Duration(getEnvIntOrDefault("CONGESTION_INTERVAL_SEC", 600)) * time.Second,
			APIBase:  getEnvOrDefault("SEOUL_CITY_DATA_API_BASE", "http://openapi.seoul.go.kr:8088"),
			APIKey:   getEnvOrDefault("SEOUL_CITY_DATA_API_KEY", ""),
			Timeout:  time.Duration(getEnvIntOrDefault("CONGESTION_TIMEOUT_SEC", 5)) * time.Second,
		},
		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
		JWTSecret:  getEnvOrDefault("JWT_SECRET", ""),
		Timezone:   loc,
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.Occupancy.InsufficientThreshold >= cfg.Occupancy.EnoughThreshold {
		return nil, fmt.Errorf("OCCUPANCY_INSUFFICIENT_THRESHOLD must be below OCCUPANCY_ENOUGH_THRESHOLD")
	}
	if cfg.Nudge.AfterMinutes >= cfg.Nudge.BeforeMinutes {
		return nil, fmt.Errorf("NUDGE_AFTER_MINUTES must be below NUDGE_BEFORE_MINUTES")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	DatabaseURL string
	RedisURL    string

	ReportURL     string
	ReportTimeout time.Duration

	MaxPlayers             int
	ArrestRangeMeters      float64
	RescueRangeMeters      float64
	BoundaryBufferMeters   float64
	WarningCooldown        time.Duration
	GameDuration           time.Duration
	PoliceRatio            float64
	RoleAssignmentStrategy string
	SweepInterval          time.Duration
	PositionTTL            time.Duration
}

// Load reads configuration from the environment, with an optional .env
// file for local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnvInt("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		ReportURL:     getEnv("REPORT_URL", ""),
		ReportTimeout: time.Duration(getEnvInt("REPORT_TIMEOUT_MS", 10000)) * time.Millisecond,

		MaxPlayers:             getEnvInt("MAX_PLAYERS", 8),
		ArrestRangeMeters:      getEnvFloat("ARREST_RANGE_METERS", 50),
		RescueRangeMeters:      getEnvFloat("RESCUE_RANGE_METERS", 5),
		BoundaryBufferMeters:   getEnvFloat("BOUNDARY_BUFFER_METERS", 5),
		WarningCooldown:        time.Duration(getEnvInt("WARNING_COOLDOWN_MS", 5000)) * time.Millisecond,
		GameDuration:           time.Duration(getEnvInt("GAME_DURATION_MINUTES", 15)) * time.Minute,
		PoliceRatio:            getEnvFloat("POLICE_RATIO", 0.3),
		RoleAssignmentStrategy: getEnv("ROLE_ASSIGNMENT_STRATEGY", "random"),
		SweepInterval:          time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		PositionTTL:            time.Duration(getEnvInt("POSITION_TTL_HOURS", 2)) * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Database     DatabaseConfig
	Redis        RedisConfig
	Cache        CacheConfig
	FormularyAPI FormularyAPIConfig
	Scoring      ScoringConfig
	Batch        BatchConfig
	Dashboard    DashboardConfig
	Service      ServiceConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds resolution cache configuration
type CacheConfig struct {
	// Backend selects the CacheProvider implementation: "memory" or "redis"
	Backend    string
	TTLSeconds int
}

// FormularyAPIConfig holds remote formulary API configuration
type FormularyAPIConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	MaxAttempts    int
	// BackoffSeconds is the linear per-attempt backoff increment
	BackoffSeconds int
}

// ScoringConfig holds workability scoring tunables. The weights and grade
// thresholds have no derivation beyond operational calibration; changing
// them changes every downstream grade.
type ScoringConfig struct {
	CoverageWeight    float64
	MarginWeight      float64
	PatientWeight     float64
	PrescriberWeight  float64
	DataQualityWeight float64

	GradeAThreshold int
	GradeBThreshold int
	GradeCThreshold int
	GradeDThreshold int

	// ScoreFreshnessHours is how long a workability score stays fresh
	ScoreFreshnessHours int
}

// BatchConfig holds batch orchestration configuration
type BatchConfig struct {
	Concurrency int
	// CoverageFreshnessDays bounds re-verification selection
	CoverageFreshnessDays int
}

// DashboardConfig holds dashboard alerting thresholds
type DashboardConfig struct {
	CriticalSuccessRate float64
	WarningSuccessRate  float64
	LowGradeAlertRatio  float64
	WindowDays          int
}

// ServiceConfig identifies the service in log output
type ServiceConfig struct {
	Name        string
	Environment string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "rxworkability"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Backend:    getEnv("CACHE_BACKEND", "memory"),
			TTLSeconds: getEnvAsInt("CACHE_TTL_SECONDS", 1800),
		},
		FormularyAPI: FormularyAPIConfig{
			BaseURL:        getEnv("FORMULARY_API_URL", "https://formulary.example.com/api/v1"),
			APIKey:         getEnv("FORMULARY_API_KEY", ""),
			TimeoutSeconds: getEnvAsInt("FORMULARY_API_TIMEOUT_SECONDS", 15),
			MaxAttempts:    getEnvAsInt("FORMULARY_API_MAX_ATTEMPTS", 3),
			BackoffSeconds: getEnvAsInt("FORMULARY_API_BACKOFF_SECONDS", 1),
		},
		Scoring: ScoringConfig{
			CoverageWeight:      getEnvAsFloat("SCORE_WEIGHT_COVERAGE", 0.35),
			MarginWeight:        getEnvAsFloat("SCORE_WEIGHT_MARGIN", 0.25),
			PatientWeight:       getEnvAsFloat("SCORE_WEIGHT_PATIENT", 0.15),
			PrescriberWeight:    getEnvAsFloat("SCORE_WEIGHT_PRESCRIBER", 0.15),
			DataQualityWeight:   getEnvAsFloat("SCORE_WEIGHT_DATA_QUALITY", 0.10),
			GradeAThreshold:     getEnvAsInt("SCORE_GRADE_A_THRESHOLD", 80),
			GradeBThreshold:     getEnvAsInt("SCORE_GRADE_B_THRESHOLD", 60),
			GradeCThreshold:     getEnvAsInt("SCORE_GRADE_C_THRESHOLD", 40),
			GradeDThreshold:     getEnvAsInt("SCORE_GRADE_D_THRESHOLD", 20),
			ScoreFreshnessHours: getEnvAsInt("SCORE_FRESHNESS_HOURS", 24),
		},
		Batch: BatchConfig{
			Concurrency:           getEnvAsInt("BATCH_CONCURRENCY", 5),
			CoverageFreshnessDays: getEnvAsInt("COVERAGE_FRESHNESS_DAYS", 7),
		},
		Dashboard: DashboardConfig{
			CriticalSuccessRate: getEnvAsFloat("DASHBOARD_CRITICAL_SUCCESS_RATE", 0.5),
			WarningSuccessRate:  getEnvAsFloat("DASHBOARD_WARNING_SUCCESS_RATE", 0.8),
			LowGradeAlertRatio:  getEnvAsFloat("DASHBOARD_LOW_GRADE_ALERT_RATIO", 0.5),
			WindowDays:          getEnvAsInt("DASHBOARD_WINDOW_DAYS", 7),
		},
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "rxworkability-engine"),
			Environment: getEnv("APP_ENV", "development"),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

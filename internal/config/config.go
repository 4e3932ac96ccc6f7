package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mwork/moderation-api/internal/domain/moderation"
	"github.com/mwork/moderation-api/internal/pkg/storage"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database. Empty URL runs every store in memory.
	DatabaseURL      string
	DBMaxOpenConns   int
	DBMaxIdleConns   int
	MigrationsDir    string
	MigrateOnStartup bool

	// Redis. Empty URL keeps post counters in memory.
	RedisURL string

	// JWT
	JWTSecret      string
	JWTAccessTTL   time.Duration
	AdminJWTSecret string
	AdminJWTTTL    time.Duration

	// CORS
	AllowedOrigins []string

	// Evidence archive
	EvidenceProvider    string
	EvidenceLocalPath   string
	EvidenceS3Endpoint  string
	EvidenceS3Region    string
	EvidenceS3Bucket    string
	EvidenceS3AccessKey string
	EvidenceS3SecretKey string

	// Moderation
	LegacyEnforcement   bool
	IntentWeight        float64
	BehaviorWeight      float64
	DecayInterval       time.Duration
	DecayAmount         int
	EventCap            int
	ProbationDailyPosts int
	DailyPostCap        int
	ArchiveEvidence     bool

	// Logging
	LogLevel string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	defaults := moderation.DefaultConfig()

	return &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:   parseInt(getEnv("DB_MAX_OPEN_CONNS", "25"), 25),
		DBMaxIdleConns:   parseInt(getEnv("DB_MAX_IDLE_CONNS", "10"), 10),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "./migrations"),
		MigrateOnStartup: parseBool(getEnv("MIGRATE_ON_STARTUP", "false"), false),

		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", "super-secret-key-change-me"),
		JWTAccessTTL:   parseDuration(getEnv("JWT_ACCESS_TTL", "15m"), 15*time.Minute),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", "admin-secret-key-change-me"),
		AdminJWTTTL:    parseDuration(getEnv("ADMIN_JWT_TTL", "8h"), 8*time.Hour),

		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		EvidenceProvider:    getEnv("EVIDENCE_PROVIDER", "local"),
		EvidenceLocalPath:   getEnv("EVIDENCE_LOCAL_PATH", "./data/evidence"),
		EvidenceS3Endpoint:  getEnv("EVIDENCE_S3_ENDPOINT", ""),
		EvidenceS3Region:    getEnv("EVIDENCE_S3_REGION", "auto"),
		EvidenceS3Bucket:    getEnv("EVIDENCE_S3_BUCKET", "moderation-evidence"),
		EvidenceS3AccessKey: getEnv("EVIDENCE_S3_ACCESS_KEY", ""),
		EvidenceS3SecretKey: getEnv("EVIDENCE_S3_SECRET_KEY", ""),

		LegacyEnforcement:   parseBool(getEnv("MODERATION_LEGACY_ENFORCEMENT", "true"), defaults.LegacyEnforcement),
		IntentWeight:        parseFloat(getEnv("MODERATION_INTENT_WEIGHT", ""), defaults.Weights.Intent),
		BehaviorWeight:      parseFloat(getEnv("MODERATION_BEHAVIOR_WEIGHT", ""), defaults.Weights.Behavior),
		DecayInterval:       parseDuration(getEnv("MODERATION_DECAY_INTERVAL", ""), defaults.Decay.Interval),
		DecayAmount:         parseInt(getEnv("MODERATION_DECAY_AMOUNT", ""), int(defaults.Decay.Amount)),
		EventCap:            parseInt(getEnv("MODERATION_EVENT_CAP", ""), defaults.EventCap),
		ProbationDailyPosts: parseInt(getEnv("MODERATION_PROBATION_DAILY_POSTS", ""), defaults.ProbationDailyPosts),
		DailyPostCap:        parseInt(getEnv("MODERATION_DAILY_POST_CAP", ""), defaults.DailyPostCap),
		ArchiveEvidence:     parseBool(getEnv("MODERATION_ARCHIVE_EVIDENCE", "true"), defaults.ArchiveEvidence),

		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

// Moderation returns the pipeline configuration. Values not exposed through
// the environment keep their defaults.
func (c *Config) Moderation() moderation.Config {
	m := moderation.DefaultConfig()
	m.LegacyEnforcement = c.LegacyEnforcement
	m.Weights.Intent = c.IntentWeight
	m.Weights.Behavior = c.BehaviorWeight
	m.Decay.Interval = c.DecayInterval
	if c.DecayAmount >= 0 {
		m.Decay.Amount = uint(c.DecayAmount)
	}
	m.EventCap = c.EventCap
	m.ProbationDailyPosts = c.ProbationDailyPosts
	m.DailyPostCap = c.DailyPostCap
	m.ArchiveEvidence = c.ArchiveEvidence
	return m
}

// Storage returns the evidence archive configuration
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Provider:    c.EvidenceProvider,
		LocalPath:   c.EvidenceLocalPath,
		S3Endpoint:  c.EvidenceS3Endpoint,
		S3Region:    c.EvidenceS3Region,
		S3Bucket:    c.EvidenceS3Bucket,
		S3AccessKey: c.EvidenceS3AccessKey,
		S3SecretKey: c.EvidenceS3SecretKey,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseBool(s string, defaultValue bool) bool {
	value, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseInt(s string, defaultValue int) int {
	value, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseFloat(s string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseStringSlice(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

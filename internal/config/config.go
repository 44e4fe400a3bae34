package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Goal completion policies.
const (
	GoalPolicyClamp  = "clamp"
	GoalPolicyReject = "reject"
)

// Image backends.
const (
	ImageBackendLocal = "local"
	ImageBackendGCS   = "gcs"
)

// Config holds application configuration
type Config struct {
	// Server
	Env         string
	Port        string
	AutoMigrate bool

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Domain rules
	GoalCompletionPolicy string
	StatsLocation        *time.Location

	// Realtime relay (optional)
	AMQPURL      string
	AMQPExchange string

	// Audit sink (optional)
	MongoURI      string
	MongoDatabase string

	// Image host
	ImageBackend       string
	GCSBucket          string
	GCSCredentialsFile string
	UploadDir          string
	PublicBaseURL      string

	// Profile cache
	UserCacheSize int
	UserCacheTTL  time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "expenses"),
		DBPassword: getEnv("DB_PASSWORD", "expenses"),
		DBName:     getEnv("DB_NAME", "expenses"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensetracker.changes"),

		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "expensetracker"),

		ImageBackend:       strings.ToLower(getEnv("IMAGE_BACKEND", ImageBackendLocal)),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		UserCacheSize: getEnvInt("USER_CACHE_SIZE", 1000),
	}

	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 15*time.Minute)
	config.UserCacheTTL = getEnvDuration("USER_CACHE_TTL", 5*time.Minute)

	policy := strings.ToLower(getEnv("GOAL_COMPLETION_POLICY", GoalPolicyClamp))
	if policy != GoalPolicyClamp && policy != GoalPolicyReject {
		log.Printf("Warning: invalid GOAL_COMPLETION_POLICY value '%s', falling back to %s\n", policy, GoalPolicyClamp)
		policy = GoalPolicyClamp
	}
	config.GoalCompletionPolicy = policy

	tz := getEnv("STATS_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("Warning: invalid STATS_TIMEZONE value '%s', falling back to UTC\n", tz)
		loc = time.UTC
	}
	config.StatsLocation = loc

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the process-wide configuration. Used by tests and embedders
// that build a Config by hand.
func Set(c *Config) {
	appConfig = c
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, raw, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

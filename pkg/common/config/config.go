package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Upstream BigGIM API
	BigGIMBaseURL   string
	UpstreamTimeout time.Duration
	PollInterval    time.Duration
	PollMaxWait     time.Duration
	PollMaxAttempts int

	// Reference data
	TissueSynonymsPath string
	ColumnMetadataPath string

	// Redis result cache
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	ResultCacheTTL time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Database (query audit log)
	PostgresHost       string
	PostgresPort       string
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresSSLMode    string
	JobRetention       time.Duration
	JobCleanupSchedule string
	AuditorPort        string

	// S3 result archive
	ArchiveBucket string
	ArchiveRegion string
	ArchivePrefix string

	// Tracing
	TracerHost  string
	TracerPort  int
	ServiceName string
	Environment string

	// Gateway specific
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is applied first without overriding variables that
// are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 11*time.Minute),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		BigGIMBaseURL:   getEnv("BIGGIM_BASE_URL", "http://biggim.ncats.io/api"),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		PollInterval:    getDuration("POLL_INTERVAL", time.Second),
		PollMaxWait:     getDuration("POLL_MAX_WAIT", 10*time.Minute),
		PollMaxAttempts: getIntEnv("POLL_MAX_ATTEMPTS", 0),

		TissueSynonymsPath: getEnv("TISSUE_SYNONYMS_PATH", ""),
		ColumnMetadataPath: getEnv("COLUMN_METADATA_PATH", ""),

		RedisHost:      getEnv("REDIS_HOST", ""),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		ResultCacheTTL: getDuration("RESULT_CACHE_TTL", 24*time.Hour),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "biggim-queries"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "query-auditor"),

		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:       getEnv("POSTGRES_USER", "biggim"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:         getEnv("POSTGRES_DB", "biggim"),
		PostgresSSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		JobRetention:       getDuration("JOB_RETENTION", 30*24*time.Hour),
		JobCleanupSchedule: getEnv("JOB_CLEANUP_SCHEDULE", "@hourly"),
		AuditorPort:        getEnv("AUDITOR_PORT", "8081"),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
		ArchiveRegion: getEnv("ARCHIVE_REGION", "us-east-1"),
		ArchivePrefix: getEnv("ARCHIVE_PREFIX", "biggim/results"),

		TracerHost:  getEnv("TRACER_HOST", ""),
		TracerPort:  getIntEnv("TRACER_PORT", 4317),
		ServiceName: getEnv("SERVICE_NAME", "biggim-gateway"),
		Environment: getEnv("ENVIRONMENT", "dev"),

		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
	}
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

func (c *Config) TracingEnabled() bool {
	return c.TracerHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

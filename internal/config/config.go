package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	SnowflakeID int64
	SeedDemo    bool
	DemoOrgID   int64

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMigrate         bool
	DBSlowQuery       time.Duration

	Redis RedisConfig
	Sales SalesConfig
}

// ObservabilityConfig covers logging and OpenTelemetry export. The exporter
// is off unless OTEL_ENABLED is set.
type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string
	OtelEnabled       bool
	OtelProtocol      string
	OtelSamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// SalesConfig carries the static knobs of the sale pipeline. Runtime policy
// that operators tune without a restart lives in SalesPolicy.
type SalesConfig struct {
	BaseCurrency     string
	LocalCurrency    string
	PolicyPath       string
	CommitRate       float64
	CommitBurst      int
	CommitLockTTL    time.Duration
	CatalogCacheTTL  time.Duration
	CommitLimitByOrg bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	commitRate := getenvFloat("SALE_COMMIT_RATE", 5)
	commitBurst := getenvInt("SALE_COMMIT_BURST", 20)

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "pos"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SnowflakeID:       getenvInt64("SNOWFLAKE_NODE", 1),
		SeedDemo:          getenvBool("SEED_DEMO", false),
		DemoOrgID:         getenvInt64("DEMO_ORG_ID", 1),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pos"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "pos.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBMigrate:         getenvBool("DATABASE_MIGRATE", true),
		DBSlowQuery:       time.Duration(getenvInt("DATABASE_SLOW_QUERY_MS", 200)) * time.Millisecond,
		Observability: ObservabilityConfig{
			LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:       getenvBool("OTEL_ENABLED", false),
			OtelProtocol:      otlpProtocol(),
			OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Sales: SalesConfig{
			BaseCurrency:     strings.ToUpper(getenv("BASE_CURRENCY", "USD")),
			LocalCurrency:    strings.ToUpper(getenv("LOCAL_CURRENCY", "VES")),
			PolicyPath:       strings.TrimSpace(getenv("SALES_CONFIG_PATH", "")),
			CommitRate:       commitRate,
			CommitBurst:      commitBurst,
			CommitLockTTL:    time.Duration(getenvInt("SALE_COMMIT_LOCK_TTL_SECONDS", 30)) * time.Second,
			CatalogCacheTTL:  time.Duration(getenvInt("CATALOG_CACHE_TTL_SECONDS", 30)) * time.Second,
			CommitLimitByOrg: getenvBool("SALE_COMMIT_RATE_LIMIT", true),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// A traces-specific protocol overrides the shared one.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	return strings.ToLower(strings.TrimSpace(protocol))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

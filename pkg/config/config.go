package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const defaultMaxDocumentSize = 5 * 1024 * 1024

// Config is the full runtime configuration, read from the environment and an optional .env file.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Documents DocumentsConfig
	Reports   ReportsConfig
	Summary   SummaryConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
	ExposedHeaders []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DocumentsConfig controls enrollment document storage and validation.
type DocumentsConfig struct {
	StorageDir                string
	SignedURLSecret           string
	SignedURLTTL              time.Duration
	MaxFileSizeBytes          int64
	AllowedExtensions         []string
	AdultCapableDocumentTypes []string
}

// ReportsConfig configures asynchronous roster and bundle exports.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// SummaryConfig governs caching of the per-state enrollment counts.
type SummaryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

var errDevSecret = errors.New("development secret in production")

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would sign tokens or download links
// with the shipped development secrets in production.
func (c *Config) Validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	secrets := map[string]string{
		"JWT_SECRET":                  c.JWT.Secret,
		"DOCUMENTS_SIGNED_URL_SECRET": c.Documents.SignedURLSecret,
		"REPORTS_SIGNED_URL_SECRET":   c.Reports.SignedURLSecret,
	}
	for key, value := range secrets {
		if value == "" || strings.HasPrefix(value, "dev_") {
			return fmt.Errorf("%s: %w", key, errDevSecret)
		}
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
	}

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ConnMaxIdleTime: parseDuration(v.GetString("DB_CONN_MAX_IDLE_TIME"), 30*time.Minute),
		AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:     v.GetBool("REDIS_ENABLED"),
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		ExposedHeaders: splitAndTrim(v.GetString("CORS_EXPOSED_HEADERS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxDocumentSize := v.GetInt64("DOCUMENTS_MAX_FILE_SIZE")
	if maxDocumentSize <= 0 {
		maxDocumentSize = defaultMaxDocumentSize
	}
	cfg.Documents = DocumentsConfig{
		StorageDir:                v.GetString("DOCUMENTS_STORAGE_DIR"),
		SignedURLSecret:           v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:              parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes:          maxDocumentSize,
		AllowedExtensions:         splitAndTrim(strings.ToLower(v.GetString("DOCUMENTS_ALLOWED_EXTENSIONS"))),
		AdultCapableDocumentTypes: splitAndTrim(strings.ToUpper(v.GetString("ADULT_CAPABLE_DOCUMENT_TYPES"))),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.Summary = SummaryConfig{
		CacheEnabled: v.GetBool("SUMMARY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"ENV":        EnvDevelopment,
		"PORT":       8080,
		"API_PREFIX": "/api/v1",

		"DB_HOST":           "localhost",
		"DB_PORT":           5432,
		"DB_USER":           "postgres",
		"DB_PASSWORD":       "postgres",
		"DB_NAME":           "articulacion",
		"DB_SSL_MODE":       "disable",
		"DB_MAX_OPEN_CONNS": 10,
		"DB_MAX_IDLE_CONNS": 5,
		"DB_AUTO_MIGRATE":   true,

		"REDIS_ENABLED": false,
		"REDIS_HOST":    "localhost",
		"REDIS_PORT":    6379,
		"REDIS_DB":      0,

		"JWT_SECRET":               "dev_secret",
		"JWT_EXPIRATION":           "24h",
		"REFRESH_TOKEN_EXPIRATION": "168h",
		"JWT_ISSUER":               "articulacion-api",
		"JWT_SINGLE_SESSION":       false,

		"CORS_EXPOSED_HEADERS": "Content-Disposition,X-Request-ID",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "json",

		"DOCUMENTS_STORAGE_DIR":        "./uploads",
		"DOCUMENTS_SIGNED_URL_SECRET":  "dev_documents_secret",
		"DOCUMENTS_SIGNED_URL_TTL":     "15m",
		"DOCUMENTS_MAX_FILE_SIZE":      defaultMaxDocumentSize,
		"DOCUMENTS_ALLOWED_EXTENSIONS": "pdf,jpg,jpeg,png",
		"ADULT_CAPABLE_DOCUMENT_TYPES": "CC",

		"ENABLE_REPORTS":             true,
		"REPORTS_STORAGE_DIR":        "./exports",
		"REPORTS_SIGNED_URL_SECRET":  "dev_reports_secret",
		"REPORTS_SIGNED_URL_TTL":     "24h",
		"REPORTS_CLEANUP_INTERVAL":   "1h",
		"REPORTS_WORKER_CONCURRENCY": 1,
		"REPORTS_WORKER_RETRIES":     3,

		"SUMMARY_CACHE_ENABLED": false,
		"SUMMARY_CACHE_TTL":     "5m",

		"ENABLE_METRICS": true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	var result []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

const (
	DBTypeMySQL    = "mysql"
	DBTypePostgres = "postgres"
	DBTypeSQLite   = "sqlite"
)

type DBConfig struct {
	Type            string
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	Path            string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	Endpoint        string
	UsePathStyle    bool
	PublicBaseURL   string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Config struct {
	AppName     string
	Port        string
	Environment string
	CorsConfig  cors.Options
	DB          DBConfig
	S3          S3Config
	Log         LogConfig

	UploadMaxBytes       int64
	CompensateOnFailure  bool
	DeleteAllConcurrency int
}

// Load reads ENV_FILE (default .env) when present and builds the configuration
// from the process environment.
func Load() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found, using process environment")
	}

	return Config{
		AppName:     getEnv("APP_NAME", "meetingvault"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		CorsConfig:  CorsConfig(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DB: DBConfig{
			Type:            strings.ToLower(getEnv("DB_TYPE", DBTypeMySQL)),
			URL:             getEnv("DB_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_DATABASE", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			Path:            getEnv("DB_PATH", "meetings.db"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 15),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		S3: S3Config{
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("AWS_DEFAULT_REGION", ""),
			BucketName:      getEnv("AWS_S3_BUCKET_NAME", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    getEnvBool("AWS_S3_USE_PATH_STYLE", false),
			PublicBaseURL:   strings.TrimSuffix(getEnv("AWS_S3_PUBLIC_BASE_URL", ""), "/"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		UploadMaxBytes:       int64(getEnvInt("UPLOAD_MAX_BYTES", 100<<20)),
		CompensateOnFailure:  getEnvBool("STORAGE_COMPENSATE_ON_FAILURE", false),
		DeleteAllConcurrency: getEnvInt("DELETE_ALL_CONCURRENCY", 4),
	}
}

// Validate reports configuration that would make the server unusable.
func (c Config) Validate() error {
	var errs []error
	switch c.DB.Type {
	case DBTypeMySQL, DBTypePostgres, DBTypeSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_TYPE %q", c.DB.Type))
	}
	if c.S3.BucketName == "" {
		errs = append(errs, errors.New("AWS_S3_BUCKET_NAME is required"))
	}
	if c.S3.Region == "" {
		errs = append(errs, errors.New("AWS_DEFAULT_REGION is required"))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func CorsConfig(origins string) cors.Options {
	allowed := make([]string, 0)
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	opts := cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
	// browsers reject a literal * on credentialed requests, so allow-all echoes the origin
	if slices.Contains(allowed, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return opts
}

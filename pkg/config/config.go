package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Automation AutomationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds verification settings for tokens issued by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AutomationConfig governs the recurring rule engine harness.
type AutomationConfig struct {
	Enabled         bool
	InitialDelay    time.Duration
	Interval        time.Duration
	RunTimeout      time.Duration
	PersistTimeout  time.Duration
	LockTTL         time.Duration
	QueueWorkers    int
	QueueRetries    int
	PreviewCacheTTL time.Duration
	RulesFile       string
}

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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Automation = AutomationConfig{
		Enabled:         v.GetBool("ENABLE_AUTOMATION"),
		InitialDelay:    parseDuration(v.GetString("AUTOMATION_INITIAL_DELAY"), 5*time.Second),
		Interval:        parseDuration(v.GetString("AUTOMATION_INTERVAL"), 30*time.Minute),
		RunTimeout:      parseDuration(v.GetString("AUTOMATION_RUN_TIMEOUT"), 5*time.Minute),
		PersistTimeout:  parseDuration(v.GetString("AUTOMATION_PERSIST_TIMEOUT"), 10*time.Second),
		LockTTL:         parseDuration(v.GetString("AUTOMATION_LOCK_TTL"), 10*time.Minute),
		QueueWorkers:    v.GetInt("AUTOMATION_QUEUE_WORKERS"),
		QueueRetries:    v.GetInt("AUTOMATION_QUEUE_RETRIES"),
		PreviewCacheTTL: parseDuration(v.GetString("AUTOMATION_PREVIEW_CACHE_TTL"), time.Minute),
		RulesFile:       v.GetString("AUTOMATION_RULES_FILE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "applytrack")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AUTOMATION", true)
	v.SetDefault("AUTOMATION_INITIAL_DELAY", "5s")
	v.SetDefault("AUTOMATION_INTERVAL", "30m")
	v.SetDefault("AUTOMATION_RUN_TIMEOUT", "5m")
	v.SetDefault("AUTOMATION_PERSIST_TIMEOUT", "10s")
	v.SetDefault("AUTOMATION_LOCK_TTL", "10m")
	v.SetDefault("AUTOMATION_QUEUE_WORKERS", 2)
	v.SetDefault("AUTOMATION_QUEUE_RETRIES", 3)
	v.SetDefault("AUTOMATION_PREVIEW_CACHE_TTL", "1m")
	v.SetDefault("AUTOMATION_RULES_FILE", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// viper reports a missing explicit config file as an os error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

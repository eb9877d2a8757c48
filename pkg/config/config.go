package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/session-auth-api/pkg/token"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env            string
	Port           int
	APIPrefix      string
	MigrateOnStart bool
	BcryptCost     int

	Database     DatabaseConfig
	Replica      ReplicaConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	RateLimit    RateLimitConfig
	StoreService StoreServiceConfig
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

// ReplicaConfig points read-only profile lookups at a lagging replica.
// An empty host routes every read to the primary.
type ReplicaConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig bounds auth traffic per client IP and failed logins per account.
type RateLimitConfig struct {
	AuthRPM            int
	LoginMaxAttempts   int
	LoginAttemptWindow time.Duration
}

// StoreServiceConfig locates the downstream store service used when owners register.
type StoreServiceConfig struct {
	BaseURL string
	Timeout time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	durations := &durationReader{v: v}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.MigrateOnStart = v.GetBool("MIGRATE_ON_START")
	cfg.BcryptCost = v.GetInt("BCRYPT_COST")

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

	cfg.Replica = ReplicaConfig{
		Host: v.GetString("DB_REPLICA_HOST"),
		Port: v.GetInt("DB_REPLICA_PORT"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     strings.TrimSpace(v.GetString("JWT_ISSUER")),
		AccessTTL:  durations.get("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: durations.get("JWT_REFRESH_TTL", 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		AuthRPM:            v.GetInt("AUTH_RATE_LIMIT_RPM"),
		LoginMaxAttempts:   v.GetInt("LOGIN_MAX_ATTEMPTS"),
		LoginAttemptWindow: durations.get("LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
	}

	cfg.StoreService = StoreServiceConfig{
		BaseURL: strings.TrimRight(v.GetString("STORE_SERVICE_URL"), "/"),
		Timeout: durations.get("STORE_SERVICE_TIMEOUT", 5*time.Second),
	}

	if durations.err != nil {
		return nil, durations.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the token codec cannot safely run with.
// Callers treat a non-nil result as a fatal startup error.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < token.MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", token.MinSecretLength)
	}
	if c.JWT.Issuer == "" {
		return fmt.Errorf("JWT_ISSUER is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL must be positive")
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive")
	}
	if c.RateLimit.LoginMaxAttempts < 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS cannot be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "session_auth")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("DB_REPLICA_HOST", "")
	v.SetDefault("DB_REPLICA_PORT", 5432)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUTH_RATE_LIMIT_RPM", 30)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_ATTEMPT_WINDOW", "15m")

	v.SetDefault("STORE_SERVICE_URL", "")
	v.SetDefault("STORE_SERVICE_TIMEOUT", "5s")
}

// durationReader parses duration keys, falling back only when a key is unset.
// Every malformed value is collected into err.
type durationReader struct {
	v   *viper.Viper
	err error
}

func (r *durationReader) get(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(r.v.GetString(key))
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		r.err = errors.Join(r.err, fmt.Errorf("%s: invalid duration %q", key, raw))
		return 0
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

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogPretty  bool   `mapstructure:"LOG_PRETTY"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	AccessTokenMaxAge  int `mapstructure:"ACCESS_TOKEN_MAX_AGE"`
	RefreshTokenMaxAge int `mapstructure:"REFRESH_TOKEN_MAX_AGE"`

	R2AccountID       string `mapstructure:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `mapstructure:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `mapstructure:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `mapstructure:"R2_BUCKET_NAME"`
	R2PublicURL       string `mapstructure:"R2_PUBLIC_URL"`

	DefaultAvatarURL string `mapstructure:"DEFAULT_AVATAR_URL"`

	// QueryTimeout bounds every aggregate fetch issued on behalf of a screen.
	QueryTimeout time.Duration `mapstructure:"QUERY_TIMEOUT"`
	// RealtimeDebounce is the settling window used to coalesce bursts of
	// realtime insert events into a single refresh.
	RealtimeDebounce time.Duration `mapstructure:"REALTIME_DEBOUNCE"`

	WorkerCount int `mapstructure:"WORKER_COUNT"`

	FCMProjectID   string `mapstructure:"FCM_PROJECT_ID"`
	FCMClientEmail string `mapstructure:"FCM_CLIENT_EMAIL"`
	FCMPrivateKey  string `mapstructure:"FCM_PRIVATE_KEY"`
}

var defaults = map[string]any{
	"SERVER_PORT": "8080",
	"LOG_LEVEL":   "info",
	"LOG_PRETTY":  false,

	"DB_HOST":     "localhost",
	"DB_PORT":     "5432",
	"DB_USER":     "postgres",
	"DB_PASSWORD": "",
	"DB_NAME":     "rollermate",
	"DB_SSLMODE":  "disable",

	"REDIS_URL": "redis://localhost:6379/0",

	"JWT_SECRET": "",

	"ACCESS_TOKEN_MAX_AGE":  900,
	"REFRESH_TOKEN_MAX_AGE": 2592000,

	"R2_ACCOUNT_ID":        "",
	"R2_ACCESS_KEY_ID":     "",
	"R2_SECRET_ACCESS_KEY": "",
	"R2_BUCKET_NAME":       "",
	"R2_PUBLIC_URL":        "",

	"DEFAULT_AVATAR_URL": "",

	"QUERY_TIMEOUT":     "5s",
	"REALTIME_DEBOUNCE": "250ms",

	"WORKER_COUNT": 2,

	"FCM_PROJECT_ID":   "",
	"FCM_CLIENT_EMAIL": "",
	"FCM_PRIVATE_KEY":  "",
}

// LoadConfig reads .env (if any) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AccessTokenMaxAge <= 0 {
		c.AccessTokenMaxAge = 900
	}
	if c.RefreshTokenMaxAge <= 0 {
		c.RefreshTokenMaxAge = 2592000
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.RealtimeDebounce <= 0 {
		c.RealtimeDebounce = 250 * time.Millisecond
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// StorageConfigured reports whether all R2 settings are present.
func (c *Config) StorageConfigured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicURL != ""
}

// PushConfigured reports whether FCM credentials are present.
func (c *Config) PushConfigured() bool {
	return c.FCMProjectID != "" && c.FCMClientEmail != "" && c.FCMPrivateKey != ""
}

// AccessTokenTTL is AccessTokenMaxAge as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMaxAge) * time.Second
}

// RefreshTokenTTL is RefreshTokenMaxAge as a duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenMaxAge) * time.Second
}

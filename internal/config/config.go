package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"invoicehub/pkg/logger"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/random"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Auth      AuthConfig      `toml:"auth"`
	Minio     MinioConfig     `toml:"minio"`
	SMTP      SMTPConfig      `toml:"smtp"`
	SMS       SMSConfig       `toml:"sms"`
	Razorpay  RazorpayConfig  `toml:"razorpay"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       logger.Config   `toml:"log"`
}

type ServerConfig struct {
	Port        string `toml:"port"`
	Environment string `toml:"environment"`
	// PublicBaseURL prefixes links sent to customers and users.
	PublicBaseURL string        `toml:"public_base_url"`
	ReadTimeout   time.Duration `toml:"read_timeout"`
	WriteTimeout  time.Duration `toml:"write_timeout"`
}

type DatabaseConfig struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type AuthConfig struct {
	JWTSecret  string        `toml:"jwt_secret"`
	JWKSURL    string        `toml:"jwks_url"`
	SessionTTL time.Duration `toml:"session_ttl"`
	BcryptCost int           `toml:"bcrypt_cost"`
	// ResetRequestsPerHour caps reset emails per address.
	ResetRequestsPerHour int `toml:"reset_requests_per_hour"`
}

type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

type SMSConfig struct {
	APIURL     string `toml:"api_url"`
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	From       string `toml:"from"`
}

type RazorpayConfig struct {
	WebhookSecret string `toml:"webhook_secret"`
}

type RateLimitConfig struct {
	PublicRPS   float64 `toml:"public_rps"`
	PublicBurst int     `toml:"public_burst"`
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			Environment:   "development",
			PublicBaseURL: "http://localhost:3000",
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  30 * time.Second,
		},
		Database: DatabaseConfig{MaxConns: 20},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Auth: AuthConfig{
			SessionTTL:           24 * time.Hour,
			BcryptCost:           12,
			ResetRequestsPerHour: 5,
		},
		Minio:     MinioConfig{Bucket: "invoices"},
		SMTP:      SMTPConfig{Port: 587},
		RateLimit: RateLimitConfig{PublicRPS: 5, PublicBurst: 10},
		Log:       logger.Config{Level: "info", Output: "stdout"},
	}
}

// Load builds the configuration from defaults, an optional TOML file, a .env
// file and the process environment, in that order of precedence (last wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Environment = getEnv("APP_ENV", cfg.Server.Environment)
	cfg.Server.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.Server.PublicBaseURL)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = int32(getEnvAsInt("DATABASE_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWKSURL = getEnv("JWKS_URL", cfg.Auth.JWKSURL)
	cfg.Auth.SessionTTL = getEnvAsDuration("SESSION_TTL", cfg.Auth.SessionTTL)
	cfg.Auth.BcryptCost = getEnvAsInt("BCRYPT_COST", cfg.Auth.BcryptCost)
	cfg.Auth.ResetRequestsPerHour = getEnvAsInt("RESET_REQUESTS_PER_HOUR", cfg.Auth.ResetRequestsPerHour)

	cfg.Minio.Endpoint = getEnv("MINIO_ENDPOINT", cfg.Minio.Endpoint)
	cfg.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.Minio.SecretKey)
	cfg.Minio.UseSSL = getEnvAsBool("MINIO_USE_SSL", cfg.Minio.UseSSL)
	cfg.Minio.Bucket = getEnv("MINIO_BUCKET", cfg.Minio.Bucket)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvAsInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)

	cfg.SMS.APIURL = getEnv("SMS_API_URL", cfg.SMS.APIURL)
	cfg.SMS.AccountSID = getEnv("SMS_ACCOUNT_SID", cfg.SMS.AccountSID)
	cfg.SMS.AuthToken = getEnv("SMS_AUTH_TOKEN", cfg.SMS.AuthToken)
	cfg.SMS.From = getEnv("SMS_FROM", cfg.SMS.From)

	cfg.Razorpay.WebhookSecret = getEnv("RAZORPAY_WEBHOOK_SECRET", cfg.Razorpay.WebhookSecret)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = getEnv("LOG_OUTPUT", cfg.Log.Output)
	cfg.Log.FilePath = getEnv("LOG_FILE", cfg.Log.FilePath)
}

func (c *Config) finalize() error {
	c.Log.Environment = c.Server.Environment
	c.Log.ServiceName = "invoicehub"
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")

	if c.Auth.BcryptCost < 10 {
		c.Auth.BcryptCost = 10
	}
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = random.String(48)
	}
	if len(c.Auth.JWTSecret) < 32 && c.IsProduction() {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

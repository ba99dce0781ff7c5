package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config holds application configuration
type Config struct {
	Env   string `yaml:"env" env:"APP_ENV" env-default:"local"`
	Debug bool   `yaml:"debug" env:"DEBUG" env-default:"false"`

	DatabaseType string `yaml:"database_type" env:"DB_TYPE" env-default:"sqlite"`
	DatabasePath string `yaml:"database_path" env:"DB_PATH" env-default:"./tutormula.db"`
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL"`

	Telegram   `yaml:"telegram"`
	HTTPServer `yaml:"http_server"`
	Admin      `yaml:"admin"`
	Scheduler  `yaml:"scheduler"`
	Email      `yaml:"email"`

	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
}

type Telegram struct {
	Token       string        `yaml:"token" env:"TELEGRAM_TOKEN"`
	APIURL      string        `yaml:"api_url" env:"TELEGRAM_API_URL" env-default:"https://api.telegram.org"`
	PollTimeout time.Duration `yaml:"poll_timeout" env:"TELEGRAM_POLL_TIMEOUT" env-default:"30s"`
	Workers     int           `yaml:"workers" env:"TELEGRAM_WORKERS" env-default:"8"`
	RateLimit   int           `yaml:"rate_limit" env:"TELEGRAM_RATE_LIMIT" env-default:"20"`
	RateWindow  time.Duration `yaml:"rate_window" env:"TELEGRAM_RATE_WINDOW" env-default:"10s"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type Admin struct {
	Secret    string        `yaml:"secret" env:"ADMIN_SECRET"`
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string        `yaml:"jwt_issuer" env:"JWT_ISSUER" env-default:"tutormula"`
	JWTTTL    time.Duration `yaml:"jwt_ttl" env:"JWT_TTL" env-default:"12h"`
}

type Scheduler struct {
	Interval      time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL" env-default:"30s"`
	RunTimeout    time.Duration `yaml:"run_timeout" env:"SCHEDULER_RUN_TIMEOUT" env-default:"10m"`
	NotifyTimeout time.Duration `yaml:"notify_timeout" env:"NOTIFY_TIMEOUT" env-default:"5s"`
}

type Email struct {
	AWSRegion string `yaml:"aws_region" env:"AWS_REGION" env-default:"us-east-1"`
	FromEmail string `yaml:"from_email" env:"SES_FROM_EMAIL"`
	FromName  string `yaml:"from_name" env:"SES_FROM_NAME" env-default:"Tutormula"`
}

// Load reads configuration from CONFIG_PATH (if set) and the environment
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that exits the process on error
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// Validate checks field combinations cleanenv cannot express with tags
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "pgx", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for database type %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env: %s", c.Env)
	}

	if c.Telegram.Token == "" && c.Env != EnvLocal {
		return fmt.Errorf("TELEGRAM_TOKEN is required outside local env")
	}
	if c.Telegram.Workers < 1 {
		c.Telegram.Workers = 1
	}
	return nil
}

// BotEnabled reports whether the chat transport should be started
func (c *Config) BotEnabled() bool {
	return c.Telegram.Token != ""
}

// AdminAPIEnabled reports whether admin routes can issue tokens
func (c *Config) AdminAPIEnabled() bool {
	return c.Admin.Secret != "" && c.Admin.JWTSecret != ""
}

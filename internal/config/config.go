package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Notifier struct {
		BaseURL         string `yaml:"base_url"`         // notification service, e.g. http://localhost:4000
		OutboxPath      string `yaml:"outbox_path"`      // file backing the failed-delivery queue
		RefreshInterval int    `yaml:"refresh_interval"` // seconds between list refreshes
		RetryInterval   int    `yaml:"retry_interval"`   // seconds between outbox drains
		MaxRetries      int    `yaml:"max_retries"`      // drops + escalates after this many failed retries
		HTTPTimeout     int    `yaml:"http_timeout"`     // seconds per gateway request
		AutoRefresh     bool   `yaml:"auto_refresh"`
	} `yaml:"notifier"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")
	serverEnv := os.Getenv("SERVER_ENV")
	portStr := os.Getenv("SERVER_PORT")
	jwtSecret := os.Getenv("JWT_SECRET")

	if dbURL == "" {
		log.Println("Loading configuration from config.yaml")

		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyNotifierDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	log.Println("Loading configuration from ENVIRONMENT VARIABLES (test mode)")

	cfg.Database.DSN = dbURL
	cfg.Server.Env = serverEnv
	cfg.Server.Port, _ = strconv.Atoi(portStr)
	cfg.JWT.Secret = jwtSecret
	cfg.JWT.TTL = 60

	cfg.Notifier.BaseURL = os.Getenv("NOTIFIER_BASE_URL")
	cfg.Notifier.OutboxPath = os.Getenv("NOTIFIER_OUTBOX_PATH")
	if cfg.Notifier.OutboxPath == "" {
		cfg.Notifier.OutboxPath = "./data/failed_notifications.json"
	}
	cfg.Notifier.AutoRefresh = true

	applyNotifierDefaults(&cfg)
	AppConfig = &cfg
}

func applyNotifierDefaults(cfg *Config) {
	if cfg.Notifier.RefreshInterval <= 0 {
		cfg.Notifier.RefreshInterval = 30
	}
	if cfg.Notifier.RetryInterval <= 0 {
		cfg.Notifier.RetryInterval = 60
	}
	if cfg.Notifier.MaxRetries <= 0 {
		cfg.Notifier.MaxRetries = 3
	}
	if cfg.Notifier.HTTPTimeout <= 0 {
		cfg.Notifier.HTTPTimeout = 10
	}
	if cfg.Notifier.OutboxPath == "" {
		cfg.Notifier.OutboxPath = "./data/failed_notifications.json"
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

// RefreshInterval returns the notifier refresh period as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Notifier.RefreshInterval) * time.Second
}

// RetryInterval returns the outbox drain period as a duration.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Notifier.RetryInterval) * time.Second
}

// HTTPTimeout returns the gateway per-request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Notifier.HTTPTimeout) * time.Second
}

// Package config loads server settings from a YAML file, an optional .env
// file and SURVEY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/surveyform/internal/utils"
)

type Config struct {
	Addr      string   `yaml:"addr"`
	JWTSecret string   `yaml:"jwt_secret"`
	Locales   []string `yaml:"locales"`
	// SecureCookies marks the draft session cookie Secure; enable behind TLS.
	SecureCookies bool        `yaml:"secure_cookies"`
	CORSOrigins   []string    `yaml:"cors_origins"`
	Store         StoreConfig `yaml:"store"`
	Drafts        DraftConfig `yaml:"drafts"`
	NATS          NATSConfig  `yaml:"nats"`
	Log           LogConfig   `yaml:"log"`
}

// StoreConfig selects the persistence backend: memory, sqlite or postgres.
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// DraftConfig selects where step drafts live: memory or redis.
type DraftConfig struct {
	Driver        string        `yaml:"driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// NATSConfig enables completion events when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const devSecret = "surveyform-dev-secret"

func Default() Config {
	return Config{
		Addr:      ":8080",
		JWTSecret: devSecret,
		Locales:   []string{"en", "zh"},
		Store:     StoreConfig{Driver: "memory"},
		Drafts:    DraftConfig{Driver: "memory", TTL: 24 * time.Hour},
		NATS:      NATSConfig{Subject: "surveys.completed"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (optional) over the defaults, then applies .env and the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Addr = utils.SafeEnv("SURVEY_ADDR", c.Addr)
	c.JWTSecret = utils.SafeEnv("SURVEY_JWT_SECRET", c.JWTSecret)
	if v := utils.SafeEnv("SURVEY_LOCALES", ""); v != "" {
		c.Locales = strings.Split(v, ",")
	}
	if v := utils.SafeEnv("SURVEY_CORS_ORIGINS", ""); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}
	c.SecureCookies = utils.EnvBool("SURVEY_SECURE_COOKIES", c.SecureCookies)
	c.Store.Driver = utils.SafeEnv("SURVEY_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = utils.SafeEnv("SURVEY_STORE_DSN", c.Store.DSN)
	c.Store.MigrationsDir = utils.SafeEnv("SURVEY_MIGRATIONS_DIR", c.Store.MigrationsDir)
	c.Drafts.Driver = utils.SafeEnv("SURVEY_DRAFT_DRIVER", c.Drafts.Driver)
	c.Drafts.RedisAddr = utils.SafeEnv("SURVEY_REDIS_ADDR", c.Drafts.RedisAddr)
	c.Drafts.RedisPassword = utils.SafeEnv("SURVEY_REDIS_PASSWORD", c.Drafts.RedisPassword)
	c.Drafts.RedisDB = utils.EnvInt("SURVEY_REDIS_DB", c.Drafts.RedisDB)
	if v := utils.SafeEnv("SURVEY_DRAFT_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Drafts.TTL = d
		}
	}
	c.NATS.URL = utils.SafeEnv("SURVEY_NATS_URL", c.NATS.URL)
	c.NATS.Subject = utils.SafeEnv("SURVEY_NATS_SUBJECT", c.NATS.Subject)
	c.Log.Level = utils.SafeEnv("SURVEY_LOG_LEVEL", c.Log.Level)
	c.Log.Format = utils.SafeEnv("SURVEY_LOG_FORMAT", c.Log.Format)
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Drafts.Driver {
	case "memory":
	case "redis":
		if c.Drafts.RedisAddr == "" {
			return errors.New("drafts.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown draft driver %q", c.Drafts.Driver)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must not be empty")
	}
	if len(c.Locales) == 0 {
		return errors.New("at least one locale is required")
	}
	return nil
}

// InsecureSecret reports whether the built-in development secret is in use.
func (c Config) InsecureSecret() bool {
	return c.JWTSecret == devSecret
}

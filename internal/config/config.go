// Package config resolves daemon settings from defaults, an optional YAML
// file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int           `yaml:"port"`
	LogLevel zerolog.Level `yaml:"-"`

	DataDir    string `yaml:"data_dir"`
	UploadsDir string `yaml:"uploads_dir"`
	JWTSecret  string `yaml:"jwt_secret"`

	CORSOrigins []string `yaml:"cors_origins"`

	LoginRateLimit  int           `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration `yaml:"login_rate_window"`

	LogRetentionDays int `yaml:"log_retention_days"`
}

func defaults() Config {
	return Config{
		Port:             9000,
		LogLevel:         zerolog.InfoLevel,
		DataDir:          "/var/lib/snd",
		UploadsDir:       "", // derived from DataDir when empty
		CORSOrigins:      []string{"http://localhost:5173"},
		LoginRateLimit:   10,
		LoginRateWindow:  time.Minute,
		LogRetentionDays: 30,
	}
}

// Load resolves the configuration. The YAML file named by SND_CONFIG is
// optional; a path that is set but unreadable is an error.
func Load() (Config, error) {
	c := defaults()

	if path := os.Getenv("SND_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&c)

	if c.UploadsDir == "" {
		c.UploadsDir = c.DataDir + "/uploads"
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("SND_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Port = p
		}
	}
	if v := os.Getenv("SND_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			c.LogLevel = l
		}
	}
	if v := os.Getenv("SND_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SND_UPLOADS_DIR"); v != "" {
		c.UploadsDir = v
	}
	if v := os.Getenv("SND_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("SND_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}
	if v := os.Getenv("SND_LOGIN_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LoginRateLimit = n
		}
	}
	if v := os.Getenv("SND_LOGIN_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.LoginRateWindow = d
		}
	}
	if v := os.Getenv("SND_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LogRetentionDays = n
		}
	}
}

// Save writes the configuration to a YAML file. The JWT secret is written
// too, so the file must be kept private.
func (c Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

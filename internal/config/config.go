// Package config loads TravelGuard's runtime configuration from a packaged
// YAML file with environment variable overrides on top.
package config

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Dev struct {
		Mode bool `yaml:"mode"`
	} `yaml:"dev"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Webhook struct {
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`
	Tariff struct {
		CSVPath   string `yaml:"csv_path"`
		RulesPath string `yaml:"rules_path"`
	} `yaml:"tariff"`
	Issuance struct {
		ScreenshotDir string `yaml:"screenshot_dir"`
		TargetURL     string `yaml:"target_url"`
		Async         bool   `yaml:"async"`
	} `yaml:"issuance"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8090"
	cfg.Dev.Mode = true
	cfg.Tariff.CSVPath = "configs/tariffs.csv"
	cfg.Tariff.RulesPath = "configs/rules.yaml"
	cfg.Issuance.ScreenshotDir = "/tmp/travelguard_screenshots"
	cfg.Issuance.Async = false
	cfg.Log.Level = "info"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Database.DSN == "" {
		return cfg, errors.New("missing database.dsn (or TG_DB_DSN)")
	}
	if cfg.Webhook.Secret == "" {
		return cfg, errors.New("missing webhook.secret (or TG_WEBHOOK_SECRET)")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TG_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("TG_DEV_MODE"); v != "" {
		cfg.Dev.Mode = parseBool(v, cfg.Dev.Mode)
	}
	if v := os.Getenv("TG_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TG_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("TG_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("TG_TARIFF_CSV_PATH"); v != "" {
		cfg.Tariff.CSVPath = v
	}
	if v := os.Getenv("TG_TARIFF_RULES_PATH"); v != "" {
		cfg.Tariff.RulesPath = v
	}
	if v := os.Getenv("TG_ISSUANCE_SCREENSHOT_DIR"); v != "" {
		cfg.Issuance.ScreenshotDir = v
	}
	if v := os.Getenv("TG_ISSUANCE_TARGET_URL"); v != "" {
		cfg.Issuance.TargetURL = v
	}
	if v := os.Getenv("TG_ISSUANCE_ASYNC"); v != "" {
		cfg.Issuance.Async = parseBool(v, cfg.Issuance.Async)
	}
	if v := os.Getenv("TG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

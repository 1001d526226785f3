package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Retention RetentionConfig `mapstructure:"retention"`
	Log       LogConfig       `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FetchConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// MaxConcurrent caps the number of feeds refreshed at the same time.
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type RetentionConfig struct {
	// KeepPerFeed items are always retained per feed, newest first.
	KeepPerFeed int           `mapstructure:"keep_per_feed"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	Interval    time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".newsroom.db")
	logPath := filepath.Join(homeDir, ".newsroom", "newsroom.log")

	return &Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Timeout: 1 * time.Second,
		},
		Fetch: FetchConfig{
			HTTPTimeout: 30 * time.Second,
			UserAgent:   "newsroom/1.0 (feed ingestion; github.com/newsroomd/newsroom)",
		},
		Refresh: RefreshConfig{
			Interval:      15 * time.Minute,
			MaxConcurrent: 5,
		},
		Retention: RetentionConfig{
			KeepPerFeed: 20,
			MaxAge:      72 * time.Hour,
			Interval:    24 * time.Hour,
		},
		Log: LogConfig{
			Level: "INFO",
			Path:  logPath,
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("fetch.http_timeout", cfg.Fetch.HTTPTimeout)
	v.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	v.SetDefault("refresh.interval", cfg.Refresh.Interval)
	v.SetDefault("refresh.max_concurrent", cfg.Refresh.MaxConcurrent)
	v.SetDefault("retention.keep_per_feed", cfg.Retention.KeepPerFeed)
	v.SetDefault("retention.max_age", cfg.Retention.MaxAge)
	v.SetDefault("retention.interval", cfg.Retention.Interval)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.path", cfg.Log.Path)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "newsroom")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NEWSROOM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.Database.Path = expandPath(config.Database.Path)
	config.Log.Path = expandPath(config.Log.Path)

	return &config, nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

// Save writes the configuration as TOML. Durations are rendered in their
// string form so the file stays hand-editable.
func Save(config *Config, path string) error {
	doc := map[string]any{
		"database": map[string]any{
			"path":    config.Database.Path,
			"timeout": config.Database.Timeout.String(),
		},
		"fetch": map[string]any{
			"http_timeout": config.Fetch.HTTPTimeout.String(),
			"user_agent":   config.Fetch.UserAgent,
		},
		"refresh": map[string]any{
			"interval":       config.Refresh.Interval.String(),
			"max_concurrent": config.Refresh.MaxConcurrent,
		},
		"retention": map[string]any{
			"keep_per_feed": config.Retention.KeepPerFeed,
			"max_age":       config.Retention.MaxAge.String(),
			"interval":      config.Retention.Interval.String(),
		},
		"log": map[string]any{
			"level": config.Log.Level,
			"path":  config.Log.Path,
		},
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}

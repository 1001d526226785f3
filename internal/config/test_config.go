package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Fetch: FetchConfig{
			HTTPTimeout: 5 * time.Second,
			UserAgent:   "newsroom-test/1.0",
		},
		Refresh: RefreshConfig{
			Interval:      1 * time.Minute,
			MaxConcurrent: 5,
		},
		Retention: RetentionConfig{
			KeepPerFeed: 20,
			MaxAge:      72 * time.Hour,
			Interval:    time.Hour,
		},
		Log: LogConfig{
			Level: "OFF",
		},
	}
}

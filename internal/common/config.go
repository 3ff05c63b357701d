package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Registry RegistryConfig `toml:"registry"`
	Browser  BrowserConfig  `toml:"browser"`
	Fetch    FetchConfig    `toml:"fetch"`
	Retry    RetryConfig    `toml:"retry"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output" validate:"min=1,dive,oneof=stdout console file"`
}

// RegistryConfig describes the remote record-viewing system. The book
// threshold separates the two generations of archived volumes, each served
// by its own legacy search entry point.
type RegistryConfig struct {
	BaseURL       string `toml:"base_url" validate:"required,url"`
	BookThreshold int    `toml:"book_threshold" validate:"gt=0"`
}

type BrowserConfig struct {
	Headless     bool          `toml:"headless"`
	UserAgent    string        `toml:"user_agent"`
	NavTimeout   time.Duration `toml:"nav_timeout" validate:"gt=0"`   // full page navigation
	ReadyTimeout time.Duration `toml:"ready_timeout" validate:"gt=0"` // single control readiness poll
}

type FetchConfig struct {
	PageTimeout  time.Duration `toml:"page_timeout" validate:"gt=0"`
	RequestDelay time.Duration `toml:"request_delay" validate:"gte=0"` // pacing between page downloads
	ZoomFrom     string        `toml:"zoom_from" validate:"required"`
	ZoomTo       string        `toml:"zoom_to" validate:"required"`
}

type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts" validate:"gte=0"` // retries after the first attempt
}

// DefaultConfig returns the configuration defaults. The registry values
// mirror the production Plymouth County viewer.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Registry: RegistryConfig{
			BaseURL:       "http://titleview.org/plymouthdeeds/",
			BookThreshold: 2393,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NavTimeout:   60 * time.Second,
			ReadyTimeout: 15 * time.Second,
		},
		Fetch: FetchConfig{
			PageTimeout:  30 * time.Second,
			RequestDelay: 500 * time.Millisecond,
			ZoomFrom:     "ZOOM=1",
			ZoomTo:       "ZOOM=6",
		},
		Retry: RetryConfig{
			MaxAttempts: 2,
		},
	}
}

// LoadConfig loads configuration from defaults, then applies the optional
// TOML file on top. Pass an empty path to use defaults only.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DiscoverConfigFile returns the default config file path if one exists in
// the working directory.
func DiscoverConfigFile() string {
	if _, err := os.Stat("deedfetch.toml"); err == nil {
		return "deedfetch.toml"
	}
	return ""
}

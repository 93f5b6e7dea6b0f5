// Package config loads run settings from an optional artificer.yaml,
// overridden by ARTIFICER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Library holds object-store settings for the pre-rendered asset library.
type Library struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Timeouts bound every external call; nothing in the pipeline may block
// indefinitely.
type Timeouts struct {
	CompletionSec int `yaml:"completion_sec"`
	AssetSec      int `yaml:"asset_sec"`
	ToolSec       int `yaml:"tool_sec"`
}

// Config is the full runtime configuration.
type Config struct {
	Model      string   `yaml:"model"`
	Budget     int      `yaml:"budget"`
	RateRPS    float64  `yaml:"rate_rps"`
	RateBurst  int      `yaml:"rate_burst"`
	CacheSize  int      `yaml:"cache_size"`
	LedgerPath string   `yaml:"ledger_path"`
	Timeouts   Timeouts `yaml:"timeouts"`
	Library    Library  `yaml:"library"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:      "gemini-2.5-flash",
		Budget:     60,
		RateRPS:    2,
		RateBurst:  4,
		CacheSize:  128,
		LedgerPath: "out/llm_usage.json",
		Timeouts: Timeouts{
			CompletionSec: 120,
			AssetSec:      45,
			ToolSec:       60,
		},
	}
}

// Load reads path (when it exists) over the defaults, then applies env
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// defaults apply
		default:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ARTIFICER_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("ARTIFICER_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget = n
		}
	}
	if v := os.Getenv("ARTIFICER_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateRPS = f
		}
	}
	if v := os.Getenv("ARTIFICER_LEDGER"); v != "" {
		c.LedgerPath = v
	}
	if v := os.Getenv("ARTIFICER_LIBRARY_ENDPOINT"); v != "" {
		c.Library.Endpoint = v
	}
	if v := os.Getenv("ARTIFICER_LIBRARY_BUCKET"); v != "" {
		c.Library.Bucket = v
	}
	if v := os.Getenv("ARTIFICER_LIBRARY_ACCESS_KEY"); v != "" {
		c.Library.AccessKey = v
	}
	if v := os.Getenv("ARTIFICER_LIBRARY_SECRET_KEY"); v != "" {
		c.Library.SecretKey = v
	}
}

// CompletionTimeout returns the per-completion-call deadline.
func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Timeouts.CompletionSec) * time.Second
}

// AssetTimeout returns the per-provider-attempt deadline.
func (c Config) AssetTimeout() time.Duration {
	return time.Duration(c.Timeouts.AssetSec) * time.Second
}

// ToolTimeout returns the static-analyzer subprocess deadline.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.Timeouts.ToolSec) * time.Second
}

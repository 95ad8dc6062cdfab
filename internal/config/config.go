// Package config loads the engager configuration from a YAML file with
// ENGAGER_-prefixed environment overrides.
package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type (
	Config struct {
		Server  Server  `koanf:"server" yaml:"server"`
		Backend Backend `koanf:"backend" yaml:"backend"`
		Refresh Refresh `koanf:"refresh" yaml:"refresh"`
		Twitter Twitter `koanf:"twitter" yaml:"twitter"`
		LLM     LLM     `koanf:"llm" yaml:"llm"`
		Sheets  Sheets  `koanf:"sheets" yaml:"sheets"`
		Storage Storage `koanf:"storage" yaml:"storage"`
	}

	Server struct {
		Addr string `koanf:"addr" validate:"required"`
	}

	// Backend points the job registry at a remote engager instead of the
	// in-process manager. Empty URL means in-process.
	Backend struct {
		URL string `koanf:"url" validate:"omitempty,url"`
	}

	// Refresh controls the dashboard pollers. Endpoints that spend Twitter
	// API quota poll on the slower TwitterInterval.
	Refresh struct {
		Interval        time.Duration `koanf:"interval" validate:"min=1s"`
		TwitterInterval time.Duration `koanf:"twitterInterval" validate:"min=1s"`
		CommandDelay    time.Duration `koanf:"commandDelay"`
	}

	Twitter struct {
		BearerToken string `koanf:"bearerToken"`
		Username    string `koanf:"username"`
	}

	LLM struct {
		APIKey      string  `koanf:"apiKey"`
		Model       string  `koanf:"model"`
		MaxRetries  int     `koanf:"maxRetries" validate:"omitempty,min=0,max=10"`
		Temperature float64 `koanf:"temperature" validate:"omitempty,min=0,max=2"`
	}

	Sheets struct {
		APIKey        string `koanf:"apiKey"`
		SpreadsheetID string `koanf:"spreadsheetId"`
		Range         string `koanf:"range"`
	}

	Storage struct {
		Path string `koanf:"path" validate:"required"`
	}
)

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8000"},
		Refresh: Refresh{
			Interval:        20 * time.Minute,
			TwitterInterval: time.Hour,
			CommandDelay:    500 * time.Millisecond,
		},
		Twitter: Twitter{Username: "TradeUpApp"},
		LLM: LLM{
			Model:       "gpt-4o-mini",
			MaxRetries:  3,
			Temperature: 0.9,
		},
		Sheets:  Sheets{Range: "Sheet1!A:F"},
		Storage: Storage{Path: "engager.db"},
	}
}

// Load reads the config file, applies ENGAGER_ environment overrides and
// validates the result. A missing file is not an error; defaults plus the
// environment apply.
func Load(ctx context.Context, path string, validate *validator.Validate) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("ENGAGER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ENGAGER_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := validate.StructCtx(ctx, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

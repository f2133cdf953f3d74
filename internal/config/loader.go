package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/tidwall/sjson"
)

// Load loads config from the default path (~/.captionbot/config.json).
// A .env file in the working directory is read first so secrets can
// live outside the config file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromFile(filepath.Join(home, ".captionbot", "config.json"))
}

// LoadFromFile loads config from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader loads config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	expandDataDir(cfg)

	return cfg, nil
}

// applyEnvOverrides applies CAPTIONBOT_-prefixed environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	envMap := map[string]*string{
		"CAPTIONBOT_DATADIR":            &cfg.DataDir,
		"CAPTIONBOT_TRANSLATOR_BACKEND": &cfg.Translator.Backend,
		"CAPTIONBOT_TRANSLATOR_APIKEY":  &cfg.Translator.APIKey,
		"CAPTIONBOT_TRANSLATOR_BASEURL": &cfg.Translator.BaseURL,
		"CAPTIONBOT_TRANSLATOR_MODEL":   &cfg.Translator.Model,
	}

	for env, ptr := range envMap {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}

	// The token lives inside the channel's raw JSON section, so the
	// override is spliced in rather than assigned.
	if token := os.Getenv("CAPTIONBOT_TELEGRAM_TOKEN"); token != "" {
		if cfg.Channels == nil {
			cfg.Channels = make(map[string]json.RawMessage)
		}
		raw := cfg.Channels["telegram"]
		if len(raw) == 0 {
			raw = json.RawMessage(`{}`)
		}
		if patched, err := sjson.SetBytes(raw, "token", token); err == nil {
			cfg.Channels["telegram"] = patched
		}
	}
}

// expandDataDir expands a leading ~ in the data directory path.
func expandDataDir(cfg *Config) {
	dir := cfg.DataDir
	if len(dir) >= 2 && dir[0] == '~' && dir[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, dir[2:])
		}
	}
}

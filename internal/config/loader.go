package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultPath returns ~/.slackbridge/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".slackbridge", "config.json"), nil
}

// Load loads config from the default path. A missing file is not an error:
// defaults plus environment overrides are returned instead.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
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

	return cfg, nil
}

// applyEnvOverrides applies SLACKBRIDGE_-prefixed environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	envMap := map[string]*string{
		"SLACKBRIDGE_SLACK_TOKEN":    &cfg.Slack.Token,
		"SLACKBRIDGE_SLACK_ROOMNAME": &cfg.Slack.RoomName,
		"SLACKBRIDGE_SLACK_APIURL":   &cfg.Slack.APIURL,
	}

	for env, ptr := range envMap {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}

	if val := os.Getenv("SLACKBRIDGE_SLACK_AUTOJOIN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Slack.AutoJoin = b
		}
	}
}

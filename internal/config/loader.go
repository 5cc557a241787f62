package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".chronicled"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix is the envconfig prefix for overrides.
	EnvPrefix = "CHRONICLED"
)

// ConfigPath returns the path to the config file, honoring the
// CHRONICLED_CONFIG override.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CHRONICLED_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Paths: PathsConfig{
			DBPath: filepath.Join(home, ConfigDir, "chronicled.db"),
		},
		Detection: DetectionConfig{
			StaleAfterDays:     14,
			InternalParties:    []string{"ops", "operations", "internal"},
			DefaultActionOwner: "ops",
		},
		Notify: NotifyConfig{
			Kafka: KafkaConfig{Topic: "chain-updates"},
			Slack: SlackConfig{Channel: "#freight-ops"},
		},
	}
}

// Load reads the config file if present and applies environment overrides
// on top of defaults. A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

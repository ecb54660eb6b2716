// Package config manages the aws-org-cli user-level configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	ConfigDirName   = ".aws-org-cli"
	ConfigFileName  = "config.json"
	DefaultLogLevel = "info"

	// DefaultRoleName is the role assumed in member accounts. Organizations
	// creates it automatically in accounts provisioned through the org.
	DefaultRoleName = "OrganizationAccountAccessRole"

	// DefaultSessionDuration is the AssumeRole duration in seconds. 900 is
	// the STS minimum; inventory runs finish well inside it.
	DefaultSessionDuration = 900
)

// Config holds user-level configuration for the aws-org-cli CLI.
type Config struct {
	DefaultRegions  []string `json:"default_regions"`
	RoleName        string   `json:"role_name"`
	ExternalID      string   `json:"external_id,omitempty"`
	Partition       string   `json:"partition"` // aws | aws-us-gov | aws-cn
	SessionDuration int      `json:"session_duration_seconds"`
	Concurrency     int      `json:"concurrency"`     // max in-flight fan-out units, 0 = unbounded
	RatePerSecond   int      `json:"rate_per_second"` // per-service API call rate
	Profile         string   `json:"profile,omitempty"`
	LogLevel        string   `json:"log_level"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		DefaultRegions:  []string{"us-east-1"},
		RoleName:        DefaultRoleName,
		Partition:       "aws",
		SessionDuration: DefaultSessionDuration,
		Concurrency:     10,
		RatePerSecond:   10,
		LogLevel:        DefaultLogLevel,
	}
}

// Dir returns the aws-org-cli config directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ConfigDirName)
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), ConfigFileName)
}

// Load reads the config from ~/.aws-org-cli/config.json. A missing file
// yields the defaults, not an error.
func Load() (Config, error) {
	return loadFrom(Path())
}

// Save persists the config to ~/.aws-org-cli/config.json.
func Save(cfg Config) error {
	return saveTo(Dir(), cfg)
}

func loadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func saveTo(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0600)
}

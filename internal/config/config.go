// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the layered runtime configuration: defaults, YAML
// file, environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// FileName is the configuration file name without extension.
	FileName = "keymaster-pinentry"
	// EnvPrefix prefixes environment overrides, e.g. KEYMASTER_PINENTRY_BACKEND.
	EnvPrefix = "keymaster_pinentry"
)

// Config is the full runtime configuration. Keys match the long flag names
// so a bound flag overrides the same key from file or environment.
type Config struct {
	Mode         string `mapstructure:"mode" yaml:"mode"`
	Backend      string `mapstructure:"backend" yaml:"backend"`
	Listen       string `mapstructure:"listen" yaml:"listen,omitempty"`
	TTYName      string `mapstructure:"ttyname" yaml:"ttyname,omitempty"`
	TTYType      string `mapstructure:"ttytype" yaml:"ttytype,omitempty"`
	LCCtype      string `mapstructure:"lc-ctype" yaml:"lc-ctype,omitempty"`
	LCMessages   string `mapstructure:"lc-messages" yaml:"lc-messages,omitempty"`
	Display      string `mapstructure:"display" yaml:"display,omitempty"`
	Timeout      int    `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts  int    `mapstructure:"max-attempts" yaml:"max-attempts"`
	MaxPinLength int    `mapstructure:"max-pin-length" yaml:"max-pin-length"`
	Lang         string `mapstructure:"lang" yaml:"lang"`
	LogLevel     string `mapstructure:"log-level" yaml:"log-level"`
	JournalType  string `mapstructure:"journal-type" yaml:"journal-type"`
	JournalDSN   string `mapstructure:"journal-dsn" yaml:"journal-dsn,omitempty"`
	Transcript   string `mapstructure:"transcript" yaml:"transcript,omitempty"`

	// ErrorCodes overrides numeric ERR codes by name, e.g. cancelled: 83886179.
	ErrorCodes map[string]uint32 `mapstructure:"error_codes" yaml:"error_codes,omitempty"`
}

// Defaults returns the default key/value set fed to LoadConfig.
func Defaults() map[string]any {
	return map[string]any{
		"mode":           "stdio",
		"backend":        "tty",
		"timeout":        0,
		"max-attempts":   3,
		"max-pin-length": 2048,
		"lang":           "en",
		"log-level":      "warn",
		"journal-type":   "sqlite",
	}
}

// Default returns the configuration LoadConfig yields with no file, env or
// flags. `config init` writes this.
func Default() Config {
	return Config{
		Mode:         "stdio",
		Backend:      "tty",
		MaxAttempts:  3,
		MaxPinLength: 2048,
		Lang:         "en",
		LogLevel:     "warn",
		JournalType:  "sqlite",
	}
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Keymaster")
		default:
			configDir = "/etc/keymaster-pinentry"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "keymaster")
	}

	return filepath.Join(configDir, FileName+".yaml"), nil
}

// LoadConfig layers defaults, the first config file found (or the explicit
// path), KEYMASTER_PINENTRY_* environment variables and the flags of cmd.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	// An explicit --config path takes precedence over the search paths.
	if explicitPath != nil && *explicitPath != "" {
		v.SetConfigFile(*explicitPath)
	}

	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, a malformed one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// WriteConfigFile marshals c to YAML at the user (or system) config path and
// returns the path written.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := GetConfigPath(system)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}
	return path, nil
}

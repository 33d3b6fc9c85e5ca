// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lodestone/lodestone/internal/assets"
	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/pkg/platform"
)

const (
	// MinAssetWorkers and MaxAssetWorkers bound assets.workers.
	MinAssetWorkers = 1
	MaxAssetWorkers = 1024
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the application configuration.
	Config struct {
		Assets  AssetsConfig  `json:"assets" mapstructure:"assets"`
		HTTP    HTTPConfig    `json:"http" mapstructure:"http"`
		Install InstallConfig `json:"install" mapstructure:"install"`
		Log     LogConfig     `json:"log" mapstructure:"log"`
		UI      UIConfig      `json:"ui" mapstructure:"ui"`
	}

	// AssetsConfig configures the asset download pool.
	AssetsConfig struct {
		Host    string `json:"host" mapstructure:"host"`
		Workers int    `json:"workers" mapstructure:"workers"`
	}

	// HTTPConfig configures outgoing requests.
	HTTPConfig struct {
		UserAgent string `json:"user_agent" mapstructure:"user_agent"`
	}

	// InstallConfig configures installations.
	InstallConfig struct {
		// Platform is a platform name or "auto".
		Platform string `json:"platform" mapstructure:"platform"`
	}

	// LogConfig configures the logger.
	LogConfig struct {
		Level string `json:"level" mapstructure:"level"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		// Verbose enables debug logging and full error chains.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidConfigError collects every field that failed validation.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, fe := range e.FieldErrors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Assets: AssetsConfig{
			Host:    assets.DefaultHost,
			Workers: assets.DefaultWorkers,
		},
		HTTP: HTTPConfig{
			UserAgent: fetch.DefaultUserAgent,
		},
		Install: InstallConfig{
			Platform: string(platform.Auto),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks constraints the environment can break after the CUE
// schema has accepted the file.
func (c *Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.Assets.Host, "http://") && !strings.HasPrefix(c.Assets.Host, "https://") {
		errs = append(errs, fmt.Errorf("assets.host %q must be an http(s) URL", c.Assets.Host))
	}
	if c.Assets.Workers < MinAssetWorkers || c.Assets.Workers > MaxAssetWorkers {
		errs = append(errs, fmt.Errorf("assets.workers %d must be between %d and %d", c.Assets.Workers, MinAssetWorkers, MaxAssetWorkers))
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		errs = append(errs, errors.New("http.user_agent must not be empty"))
	}
	if c.Install.Platform != string(platform.Auto) {
		if _, err := platform.Parse(c.Install.Platform); err != nil {
			errs = append(errs, fmt.Errorf("install.platform: %w", err))
		}
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Platform resolves install.platform, detecting the host for "auto".
func (c *Config) Platform() (platform.Platform, error) {
	return platform.Parse(c.Install.Platform)
}

// LogLevel returns the configured level, or debug when verbose is set.
func (c *Config) LogLevel() log.Level {
	if c.UI.Verbose {
		return log.DebugLevel
	}
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Package config decodes fusionner's TOML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/lawliet89/fusionner/internal/gitrepo"
)

// DefaultInterval is used when the configuration file omits "interval",
// matching original_source/src/main.rs's DEFAULT_INTERVAL constant.
const DefaultInterval = 30

// Config is the top-level shape of the TOML configuration file
// (SPEC_FULL.md §6).
type Config struct {
	Repository gitrepo.RepositoryConfiguration `toml:"repository"`
	Interval   *int                            `toml:"interval"`
}

// IntervalDuration returns the configured interval, or DefaultInterval
// seconds if unset, as a time.Duration.
func (c Config) IntervalDuration() time.Duration {
	seconds := DefaultInterval
	if c.Interval != nil {
		seconds = *c.Interval
	}
	return time.Duration(seconds) * time.Second
}

// ReadFile reads and decodes the TOML configuration file at path.
func ReadFile(path string) (Config, error) {
	logrus.Infof("Reading configuration from %q", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	logrus.Debugf("Configuration parsed: %+v", cfg)
	return cfg, nil
}

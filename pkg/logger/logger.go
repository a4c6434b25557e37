// Package logger configures the process-wide logrus logger used by both services.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Config is the configuration of the global logger.
type Config struct {
	Level string `json:"level"`
	Color bool   `json:"color"`
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{Level: "info", Color: true}
}

// Validate implements check.Validatable.
func (c Config) Validate() []error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return []error{err}
	}
	return nil
}

// SetLogrus installs c as the process-wide logrus configuration.
func SetLogrus(c Config) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		panic(fmt.Sprintf("invalid log level: %s", c.Level))
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   c.Color,
		DisableColors: !c.Color,
	})
}

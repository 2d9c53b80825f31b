// Package config holds the runtime configuration shared by all
// commands, populated from flags and SECBAK_* environment variables.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/secbak/secbak/internal/container"
)

// Config carries every command's settings. Commands set their mode
// fields before validation.
type Config struct {
	// Common flags
	Password string `mapstructure:"password"`
	Parallel int    `mapstructure:"parallel" validate:"min=1"`
	Quiet    bool   `mapstructure:"quiet"`
	Stats    bool   `mapstructure:"stats"`
	LogLevel string `mapstructure:"log-level" validate:"oneof=debug info warn error"`

	// Encrypt/decrypt
	ChunkSize int    `mapstructure:"chunk-size" validate:"min=1"`
	Suffix    string `mapstructure:"suffix" validate:"required"`
	Decrypt   bool

	// Fragment/rebuild
	FragmentSize int64  `mapstructure:"fragment-size" validate:"min=1"`
	Output       string `mapstructure:"output"`

	// Backup
	Algorithm string   `mapstructure:"algorithm" validate:"oneof=zip gzip zstd xz"`
	Include   []string `mapstructure:"include"`
	Exclude   []string `mapstructure:"exclude"`
	Store     string   `mapstructure:"store"`
	Cloud     string   `mapstructure:"cloud"`
	Fragment  bool     `mapstructure:"fragment"`

	// Positional arguments
	Files []string `validate:"min=1"`
}

// Validate validates the configuration against the struct tags.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	if c.ChunkSize > container.MaxChunkSize {
		return fmt.Errorf("chunk-size %d exceeds the maximum of %d bytes", c.ChunkSize, container.MaxChunkSize)
	}

	return nil
}

// NewLogger builds the logger configured by LogLevel. Components
// receive it as an explicit handle; there is no package-level logger.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	if c.Quiet {
		logger.SetLevel(logrus.ErrorLevel)
	}

	return logger
}

package app

import (
	"errors"
	"time"
)

// Config holds everything an App instance needs to run.
type Config struct {
	MoleculePath string // .hcl molecule file or directory

	LogFormat string
	LogLevel  string

	// PollInterval overrides the molecule file's session setting when
	// non-zero.
	PollInterval time.Duration
	// Watch keeps the session polling after a completed pass instead of
	// exiting after the first outcome.
	Watch bool
	// StatusPort enables the HTTP status endpoint when positive.
	StatusPort int

	// Inputs are key=value pairs from the command line; they override
	// values from InputsFile and the molecule's inputs block.
	Inputs map[string]string
	// InputsFile points at a YAML mapping of input values.
	InputsFile string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.MoleculePath == "" {
		return nil, errors.New("MoleculePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}

package imgedge

import (
	"github.com/LavishGent/imgedge/internal/config"
)

// New creates a service with the default configuration.
func New(opts ...Option) (*Service, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromFile creates a service from a JSON config file, applying environment overrides.
func NewFromFile(path string, opts ...Option) (*Service, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// DefaultConfig returns a configuration that can be modified before creating a service.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// TestConfig returns a memory-only configuration suitable for unit tests.
func TestConfig() *Config {
	return config.ForTesting()
}

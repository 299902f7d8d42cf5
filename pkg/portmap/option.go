package portmap

import (
	"time"

	"github.com/go-logr/logr"
)

type config struct {
	discoveryTimeout time.Duration
	logger           logr.Logger
}

type Option func(*config)

func newDefaultConfig() *config {
	return &config{
		discoveryTimeout: defaultDiscoveryTimeout,
		logger:           logr.Discard(),
	}
}

// WithDiscoveryTimeout bounds gateway discovery
func WithDiscoveryTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.discoveryTimeout = timeout
	}
}

// WithLogger sets the logger to use for logging
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

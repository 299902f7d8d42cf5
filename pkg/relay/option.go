package relay

import (
	"errors"
	"time"

	"github.com/go-logr/logr"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 5 * time.Second
)

var (
	errNoCandidates        = errors.New("no relay servers configured")
	errRegistrationRefused = errors.New("relay refused registration")
)

type config struct {
	dialTimeout time.Duration
	ioTimeout   time.Duration
	logger      logr.Logger
}

type Option func(*config)

func newDefaultConfig() *config {
	return &config{
		dialTimeout: defaultDialTimeout,
		ioTimeout:   defaultIOTimeout,
		logger:      logr.Discard(),
	}
}

// WithDialTimeout bounds the TCP connect to each relay candidate
func WithDialTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.dialTimeout = timeout
	}
}

// WithIOTimeout bounds the registration round-trip on each candidate
func WithIOTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.ioTimeout = timeout
	}
}

// WithLogger sets the logger to use for logging
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

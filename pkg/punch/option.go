package punch

import (
	"errors"
	"time"

	"github.com/go-logr/logr"
)

const (
	defaultAttempts     = 5
	defaultSendInterval = 500 * time.Millisecond
	defaultHostTimeout  = 30 * time.Second
	defaultDialTimeout  = 10 * time.Second
)

var errNilCandidate = errors.New("candidate address required")

type config struct {
	attempts     int
	sendInterval time.Duration
	hostTimeout  time.Duration
	dialTimeout  time.Duration
	logger       logr.Logger
}

type Option func(*config)

func newDefaultConfig() *config {
	return &config{
		attempts:     defaultAttempts,
		sendInterval: defaultSendInterval,
		hostTimeout:  defaultHostTimeout,
		dialTimeout:  defaultDialTimeout,
		logger:       logr.Discard(),
	}
}

// WithAttempts sets the punch packet budget. The budget must be greater than 0
func WithAttempts(attempts int) Option {
	return func(cfg *config) {
		cfg.attempts = attempts
	}
}

// WithSendInterval sets the interval between punch packets
func WithSendInterval(interval time.Duration) Option {
	return func(cfg *config) {
		cfg.sendInterval = interval
	}
}

// WithHostTimeout bounds how long the host waits for the first punch packet
func WithHostTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.hostTimeout = timeout
	}
}

// WithDialTimeout bounds how long the guest waits for the acknowledgment
func WithDialTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.dialTimeout = timeout
	}
}

// WithLogger sets the logger to use for logging
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

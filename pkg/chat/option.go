package chat

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
)

const defaultPollTimeout = 250 * time.Millisecond

type config struct {
	input       io.Reader
	output      io.Writer
	localName   string
	peerName    string
	pollTimeout time.Duration
	logger      logr.Logger
}

type Option func(*config)

func newDefaultConfig() *config {
	return &config{
		input:       os.Stdin,
		output:      os.Stdout,
		localName:   "You",
		peerName:    "Friend",
		pollTimeout: defaultPollTimeout,
		logger:      logr.Discard(),
	}
}

// WithInput sets the line source for the foreground loop
func WithInput(r io.Reader) Option {
	return func(cfg *config) {
		cfg.input = r
	}
}

// WithOutput sets where session output is printed
func WithOutput(w io.Writer) Option {
	return func(cfg *config) {
		cfg.output = w
	}
}

// WithNames sets the display names for the local and remote side
func WithNames(local, remote string) Option {
	return func(cfg *config) {
		cfg.localName = local
		cfg.peerName = remote
	}
}

// WithPollTimeout sets the background receive poll interval
func WithPollTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.pollTimeout = timeout
	}
}

// WithLogger sets the logger to use for logging
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

package resolver

import (
	"time"

	"github.com/go-logr/logr"
)

const (
	defaultSTUNTimeout = 2 * time.Second
	defaultHTTPTimeout = 5 * time.Second
)

var (
	defaultSTUNServers = []string{
		"stun.l.google.com:19302",
		"stun1.l.google.com:19302",
		"stun2.l.google.com:19302",
	}

	defaultHTTPEndpoints = []string{
		"https://api.ipify.org",
		"https://api64.ipify.org",
	}
)

type config struct {
	stunServers   []string
	stunTimeout   time.Duration
	httpEndpoints []string
	httpTimeout   time.Duration
	logger        logr.Logger
}

type Option func(*config)

func newDefaultConfig() *config {
	return &config{
		stunServers:   defaultSTUNServers,
		stunTimeout:   defaultSTUNTimeout,
		httpEndpoints: defaultHTTPEndpoints,
		httpTimeout:   defaultHTTPTimeout,
		logger:        logr.Discard(),
	}
}

// WithSTUNServers sets the ordered discovery server candidates.
func WithSTUNServers(servers []string) Option {
	return func(cfg *config) {
		cfg.stunServers = servers
	}
}

// WithSTUNTimeout bounds each discovery server exchange.
func WithSTUNTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.stunTimeout = timeout
	}
}

// WithHTTPEndpoints sets the ordered "what is my IP" fallback URLs.
func WithHTTPEndpoints(urls []string) Option {
	return func(cfg *config) {
		cfg.httpEndpoints = urls
	}
}

// WithHTTPTimeout bounds each fallback HTTP request.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.httpTimeout = timeout
	}
}

// WithLogger sets the logger. The resolver only ever logs at V-level since
// every failure here is expected and absorbed.
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

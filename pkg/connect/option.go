package connect

import (
	"errors"
	"net"
	"time"

	"github.com/go-logr/logr"

	"github.com/komomoko/komochat/pkg/punch"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultAcceptTimeout = 30 * time.Second
)

var (
	errNoSessionID   = errors.New("no session id available")
	errNoRelayClient = errors.New("no relay client configured")
)

type config struct {
	dialer        Dialer
	acceptor      Acceptor
	puncher       punch.Puncher
	relayClient   RelayDialer
	mapper        PortMapper
	dialTimeout   time.Duration
	acceptTimeout time.Duration
	logger        logr.Logger
}

type Option func(*config)

func newDefaultConfig() *config {
	return &config{
		dialer:        &net.Dialer{},
		acceptor:      tcpAcceptor{},
		puncher:       punch.NewPuncher(),
		dialTimeout:   defaultDialTimeout,
		acceptTimeout: defaultAcceptTimeout,
		logger:        logr.Discard(),
	}
}

// WithDialer sets the direct-connect dialer
func WithDialer(d Dialer) Option {
	return func(cfg *config) {
		cfg.dialer = d
	}
}

// WithAcceptor sets the direct-listen acceptor
func WithAcceptor(a Acceptor) Option {
	return func(cfg *config) {
		cfg.acceptor = a
	}
}

// WithPuncher sets the hole punch negotiator
func WithPuncher(p punch.Puncher) Option {
	return func(cfg *config) {
		cfg.puncher = p
	}
}

// WithRelayClient sets the relay registration client
func WithRelayClient(r RelayDialer) Option {
	return func(cfg *config) {
		cfg.relayClient = r
	}
}

// WithPortMapper sets the optional automatic port mapping capability.
// Leaving it unset skips mapping entirely; it is never required.
func WithPortMapper(m PortMapper) Option {
	return func(cfg *config) {
		cfg.mapper = m
	}
}

// WithDialTimeout bounds the direct TCP connect
func WithDialTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.dialTimeout = timeout
	}
}

// WithAcceptTimeout bounds the direct-listen wait
func WithAcceptTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.acceptTimeout = timeout
	}
}

// WithLogger sets the logger to use for logging
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

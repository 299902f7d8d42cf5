// Package connect orchestrates connection establishment: direct TCP, UDP
// hole punching, port mapping plus direct listen, and relay fallback, in
// strict priority order. Direct paths are fastest when available; the relay
// always works.
package connect

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"

	errs "github.com/komomoko/komochat/pkg/error"
	"github.com/komomoko/komochat/pkg/peer"
	"github.com/komomoko/komochat/pkg/punch"
	"github.com/komomoko/komochat/pkg/relay"
	"github.com/komomoko/komochat/pkg/transport"
)

// Method identifies which establishment path produced the transport.
type Method string

const (
	MethodDirect Method = "direct"
	MethodPunch  Method = "punch"
	MethodListen Method = "listen"
	MethodRelay  Method = "relay"
)

// Dialer is the direct-connect collaborator. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Acceptor is the direct-listen collaborator used on the hosting side.
type Acceptor interface {
	// AcceptOne listens on port and waits up to timeout for exactly one
	// inbound TCP connection.
	AcceptOne(ctx context.Context, port int, timeout time.Duration) (net.Conn, error)
}

// RelayDialer is the relay registration collaborator. *relay.Client
// satisfies it.
type RelayDialer interface {
	Connect(ctx context.Context, roomID string, role relay.Role, username string) (*relay.Session, error)
}

// PortMapper is the optional automatic port mapping capability. Its absence
// or failure is never fatal; it only improves the odds of the direct-listen
// method.
type PortMapper interface {
	Map(port int) (string, error)
}

// Request describes one connection attempt.
type Request struct {
	// Target is the peer's candidate endpoint. Zero when hosting or when
	// only a session code is known.
	Target peer.Endpoint

	// SessionID is the relay room code. Empty on the hosting side means
	// "generate one if the relay is reached".
	SessionID string

	Host     bool
	Username string

	// ListenPort is the local port used for hole punching and direct
	// listening when hosting.
	ListenPort int
}

// Result is an established connection plus how it was made. SessionID is
// populated when a room code was generated on the way to the relay, so the
// operator can share it.
type Result struct {
	Transport transport.Transport
	Method    Method
	SessionID string
}

type Connector struct {
	dialer        Dialer
	acceptor      Acceptor
	puncher       punch.Puncher
	relayClient   RelayDialer
	mapper        PortMapper
	dialTimeout   time.Duration
	acceptTimeout time.Duration
	logger        logr.Logger
}

func NewConnector(opts ...Option) *Connector {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Connector{
		dialer:        cfg.dialer,
		acceptor:      cfg.acceptor,
		puncher:       cfg.puncher,
		relayClient:   cfg.relayClient,
		mapper:        cfg.mapper,
		dialTimeout:   cfg.dialTimeout,
		acceptTimeout: cfg.acceptTimeout,
		logger:        cfg.logger,
	}
}

// Connect tries every applicable method in priority order and stops at the
// first success. Each method's failure is absorbed and logged; only when the
// whole chain is exhausted does the caller see ErrAllMethodsFailed wrapping
// the last cause.
func (c *Connector) Connect(ctx context.Context, req Request) (*Result, error) {
	var lastErr error

	if !req.Host && !req.Target.IsZero() {
		res, err := c.tryDirect(ctx, req.Target)
		if err == nil {
			return res, nil
		}
		c.logger.V(1).Info("direct connect failed", "target", req.Target.String(), "reason", err.Error())
		lastErr = err

		res, err = c.tryPunchDial(ctx, req.Target)
		if err == nil {
			return res, nil
		}
		c.logger.V(1).Info("hole punch failed", "target", req.Target.String(), "reason", err.Error())
		lastErr = err
	}

	if req.Host && req.ListenPort > 0 {
		res, err := c.tryPunchHost(ctx, req.ListenPort)
		if err == nil {
			return res, nil
		}
		c.logger.V(1).Info("hole punch wait failed", "port", req.ListenPort, "reason", err.Error())
		lastErr = err

		res, err = c.tryListen(ctx, req.ListenPort)
		if err == nil {
			return res, nil
		}
		c.logger.V(1).Info("direct listen failed", "port", req.ListenPort, "reason", err.Error())
		lastErr = err
	}

	res, err := c.tryRelay(ctx, req)
	if err == nil {
		return res, nil
	}
	c.logger.V(1).Info("relay failed", "reason", err.Error())
	lastErr = err

	return nil, errs.Wrap(errs.ErrAllMethodsFailed, lastErr)
}

func (c *Connector) tryDirect(ctx context.Context, target peer.Endpoint) (*Result, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", target.String())
	if err != nil {
		return nil, err
	}

	c.logger.Info("connected directly", "target", target.String())
	return &Result{Transport: transport.NewStream(conn), Method: MethodDirect}, nil
}

func (c *Connector) tryPunchDial(ctx context.Context, target peer.Endpoint) (*Result, error) {
	candidate, err := target.UDPAddr()
	if err != nil {
		return nil, err
	}

	res, err := c.puncher.Dial(ctx, candidate)
	if err != nil {
		return nil, err
	}

	c.logger.Info("connected via hole punch", "peer", res.Remote.String())
	return &Result{Transport: transport.NewDatagram(res.Conn, res.Remote), Method: MethodPunch}, nil
}

func (c *Connector) tryPunchHost(ctx context.Context, port int) (*Result, error) {
	res, err := c.puncher.Host(ctx, port)
	if err != nil {
		return nil, err
	}

	c.logger.Info("peer connected via hole punch", "peer", res.Remote.String())
	return &Result{Transport: transport.NewDatagram(res.Conn, res.Remote), Method: MethodPunch}, nil
}

func (c *Connector) tryListen(ctx context.Context, port int) (*Result, error) {
	if c.mapper != nil {
		if externalIP, err := c.mapper.Map(port); err != nil {
			c.logger.V(1).Info("port mapping unavailable", "reason", err.Error())
		} else {
			c.logger.Info("port mapped on gateway", "port", port, "external_ip", externalIP)
		}
	}

	conn, err := c.acceptor.AcceptOne(ctx, port, c.acceptTimeout)
	if err != nil {
		return nil, err
	}

	c.logger.Info("peer connected directly", "peer", conn.RemoteAddr().String())
	return &Result{Transport: transport.NewStream(conn), Method: MethodListen}, nil
}

func (c *Connector) tryRelay(ctx context.Context, req Request) (*Result, error) {
	if c.relayClient == nil {
		return nil, errNoRelayClient
	}

	sessionID := req.SessionID
	role := relay.RoleGuest
	generated := ""

	if req.Host {
		role = relay.RoleHost
	}

	if sessionID == "" {
		if !req.Host {
			return nil, errNoSessionID
		}

		code, err := relay.GenerateRoomCode()
		if err != nil {
			return nil, err
		}
		sessionID = code
		generated = code
		c.logger.Info("generated room code, share it with your peer", "code", code)
	}

	session, err := c.relayClient.Connect(ctx, sessionID, role, req.Username)
	if err != nil {
		return nil, err
	}

	return &Result{
		Transport: transport.NewRelayed(session),
		Method:    MethodRelay,
		SessionID: generated,
	}, nil
}

// tcpAcceptor is the production Acceptor: bind, wait for one peer, close the
// listener.
type tcpAcceptor struct{}

func (tcpAcceptor) AcceptOne(ctx context.Context, port int, timeout time.Duration) (net.Conn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if tcpLn, ok := ln.(*net.TCPListener); ok {
		if err = tcpLn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	conn, err := ln.Accept()
	if err != nil {
		return nil, errs.Wrap(errs.ErrNoListener, err)
	}
	return conn, nil
}

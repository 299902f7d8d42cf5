// Package punch performs the UDP rendezvous handshake that opens a direct
// path between two NATed peers. It only succeeds across NATs with
// endpoint-independent mapping; symmetric NATs time out, which callers treat
// as ordinary failure and fall back to a relay.
package punch

import (
	"context"
	"net"
	"time"

	"github.com/go-logr/logr"

	errs "github.com/komomoko/komochat/pkg/error"
)

// Reserved handshake literals. The first outbound packet is what creates the
// NAT mapping, so the guest repeats it; the host acknowledges exactly once
// per observed sender.
const (
	HelloLiteral = "HELLO"
	AckLiteral   = "ACK"
)

const readBufferSize = 1024

// Result is the established UDP pair: the bound socket and the observed
// remote address all further traffic goes to.
type Result struct {
	Conn   *net.UDPConn
	Remote *net.UDPAddr
}

type Puncher interface {
	// Host binds the given local port and waits for one HELLO datagram,
	// acknowledging it with ACK. The sender becomes the remote peer.
	Host(ctx context.Context, port int) (*Result, error)

	// Dial binds an ephemeral port, punches toward the candidate address and
	// waits for the host's ACK.
	Dial(ctx context.Context, candidate *net.UDPAddr) (*Result, error)
}

type puncher struct {
	attempts     int
	sendInterval time.Duration
	hostTimeout  time.Duration
	dialTimeout  time.Duration
	logger       logr.Logger
}

func NewPuncher(opts ...Option) Puncher {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &puncher{
		attempts:     cfg.attempts,
		sendInterval: cfg.sendInterval,
		hostTimeout:  cfg.hostTimeout,
		dialTimeout:  cfg.dialTimeout,
		logger:       cfg.logger,
	}
}

func (p *puncher) Host(ctx context.Context, port int) (*Result, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, err
	}

	deadline := boundedDeadline(ctx, p.hostTimeout)
	if err = conn.SetReadDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}

	p.logger.Info("waiting for punch", "port", port, "timeout", p.hostTimeout.String())

	buf := make([]byte, readBufferSize)
	for {
		n, addr, errRead := conn.ReadFromUDP(buf)
		if errRead != nil {
			conn.Close()
			return nil, errs.Wrap(errs.ErrPunchTimeout, errRead)
		}

		if string(buf[:n]) != HelloLiteral {
			continue
		}

		p.logger.Info("peer punched through", "peer", addr.String())

		if _, errAck := conn.WriteToUDP([]byte(AckLiteral), addr); errAck != nil {
			conn.Close()
			return nil, errAck
		}

		if errClear := conn.SetReadDeadline(time.Time{}); errClear != nil {
			conn.Close()
			return nil, errClear
		}

		return &Result{Conn: conn, Remote: addr}, nil
	}
}

func (p *puncher) Dial(ctx context.Context, candidate *net.UDPAddr) (*Result, error) {
	if candidate == nil {
		return nil, errs.Wrap(errs.ErrPunchTimeout, errNilCandidate)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}

	p.logger.Info("punching", "candidate", candidate.String(), "attempts", p.attempts)

	for i := 0; i < p.attempts; i++ {
		if _, errSend := conn.WriteToUDP([]byte(HelloLiteral), candidate); errSend != nil {
			p.logger.V(1).Info("punch send failed", "attempt", i+1, "reason", errSend.Error())
		}

		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(p.sendInterval):
		}
	}

	deadline := boundedDeadline(ctx, p.dialTimeout)
	if err = conn.SetReadDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}

	buf := make([]byte, readBufferSize)
	for {
		n, addr, errRead := conn.ReadFromUDP(buf)
		if errRead != nil {
			conn.Close()
			return nil, errs.Wrap(errs.ErrPunchTimeout, errRead)
		}

		// The mapped port may differ behind the peer's NAT; only the IP has
		// to match the candidate. The observed sender address becomes the
		// remote for the session.
		if string(buf[:n]) != AckLiteral || !addr.IP.Equal(candidate.IP) {
			continue
		}

		p.logger.Info("punch acknowledged", "peer", addr.String())

		if errClear := conn.SetReadDeadline(time.Time{}); errClear != nil {
			conn.Close()
			return nil, errClear
		}

		return &Result{Conn: conn, Remote: addr}, nil
	}
}

func boundedDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

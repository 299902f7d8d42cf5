// Package relay connects to a TCP intermediary that forwards message
// envelopes between the members of a room when no direct path exists.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/go-logr/logr"

	errs "github.com/komomoko/komochat/pkg/error"
)

// Role distinguishes who created the room from who joined it.
type Role int

const (
	RoleHost Role = iota
	RoleGuest
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

type Client struct {
	servers     []string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	logger      logr.Logger
}

// NewClient builds a relay client over an ordered list of candidate server
// addresses, tried in order on every Connect.
func NewClient(servers []string, opts ...Option) *Client {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		servers:     servers,
		dialTimeout: cfg.dialTimeout,
		ioTimeout:   cfg.ioTimeout,
		logger:      cfg.logger,
	}
}

// Connect registers with the first candidate relay that answers the
// registration envelope with a success marker. Refusals, timeouts and
// malformed responses advance to the next candidate; exhausting the list
// yields ErrRelayUnavailable.
func (c *Client) Connect(ctx context.Context, roomID string, role Role, username string) (*Session, error) {
	var lastErr error

	for _, server := range c.servers {
		session, err := c.register(ctx, server, roomID, role, username)
		if err != nil {
			c.logger.V(1).Info("relay candidate failed", "server", server, "reason", err.Error())
			lastErr = err
			continue
		}

		c.logger.Info("registered with relay", "server", server, "room", roomID, "role", role.String())
		return session, nil
	}

	if lastErr == nil {
		lastErr = errNoCandidates
	}
	return nil, errs.Wrap(errs.ErrRelayUnavailable, lastErr)
}

func (c *Client) register(ctx context.Context, server, roomID string, role Role, username string) (*Session, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return nil, err
	}

	reg := Registration{
		Type:     TypeConnect,
		RoomID:   roomID,
		IsHost:   role == RoleHost,
		Username: username,
	}

	payload, err := json.Marshal(reg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	payload = append(payload, '\n')

	if err = conn.SetDeadline(time.Now().Add(c.ioTimeout)); err != nil {
		conn.Close()
		return nil, err
	}

	if _, err = conn.Write(payload); err != nil {
		conn.Close()
		return nil, err
	}

	reader := bufio.NewReader(conn)
	reply, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, err
	}

	if !strings.Contains(reply, successMarker) {
		conn.Close()
		return nil, errRegistrationRefused
	}

	if err = conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, err
	}

	return &Session{
		conn:     conn,
		reader:   reader,
		roomID:   roomID,
		role:     role,
		username: username,
	}, nil
}

// Session is an established relay registration. It performs no automatic
// retries: any send or receive failure after registration is connection loss
// and fatal for the chat session built on top.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	roomID   string
	role     Role
	username string
}

func (s *Session) RoomID() string     { return s.roomID }
func (s *Session) Role() Role         { return s.role }
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// Send forwards one text message to the room.
func (s *Session) Send(text string) error {
	return s.sendEnvelope(Envelope{Type: TypeMessage, Content: text, From: s.username})
}

// SendEnd signals end of session to the room.
func (s *Session) SendEnd() error {
	return s.sendEnvelope(Envelope{Type: TypeEnd, From: s.username})
}

func (s *Session) sendEnvelope(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	_, err = s.conn.Write(payload)
	return err
}

// Receive blocks for up to timeout waiting for the next message or end
// envelope. ok is false on timeout; a read failure means the relay
// connection is gone.
func (s *Session) Receive(timeout time.Duration) (Envelope, bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return Envelope{}, false, err
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return Envelope{}, false, nil
			}
			return Envelope{}, false, err
		}

		line = bytes.TrimRight(line, "\n")
		if len(line) == 0 {
			continue
		}

		env := decodeEnvelope(line)
		switch env.Type {
		case TypeMessage, TypeEnd:
			return env, true, nil
		default:
			// Registration echoes and unknown control traffic are dropped.
			continue
		}
	}
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// Package server implements the relay daemon: a TCP intermediary that
// registers peers into rooms and forwards their envelopes when no direct
// path between them could be established.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/komomoko/komochat/pkg/relay"
)

const (
	registrationTimeout = 10 * time.Second
	maxLineBytes        = 64 * 1024

	httpReadTimeout  = 5 * time.Second
	httpWriteTimeout = 5 * time.Second
	httpIdleTimeout  = 10 * time.Second
	maxHeaderBytes   = 1 << 20
)

type RelayServer struct {
	registry *registry
	logger   *logrus.Logger

	listener   net.Listener
	httpServer *http.Server

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(logger *logrus.Logger) *RelayServer {
	if logger == nil {
		logger = logrus.New()
	}
	return &RelayServer{
		registry: newRegistry(),
		logger:   logger,
	}
}

// Start begins accepting relay registrations on addr. It returns once the
// listener is bound; connections are served in the background.
func (s *RelayServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind relay listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.WithField("addr", listener.Addr().String()).Info("relay listening")

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Addr reports the bound listener address, useful when addr had port 0.
func (s *RelayServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// StartHTTP exposes the health and address-echo endpoints on addr.
func (s *RelayServer) StartHTTP(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Plain-text IP echo, compatible with the resolver's HTTP fallback.
	r.GET("/v1/ip", func(c *gin.Context) {
		c.String(http.StatusOK, c.ClientIP())
	})

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    httpReadTimeout,
		WriteTimeout:   httpWriteTimeout,
		IdleTimeout:    httpIdleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("http listener failed")
		}
	}()

	return nil
}

// Stop closes the listeners and waits for in-flight connections to unwind.
func (s *RelayServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RelayServer) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.WithError(err).Error("accept failed")
			}
			return
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *RelayServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	reader := bufio.NewReaderSize(conn, maxLineBytes)

	reg, err := s.readRegistration(conn, reader)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"remote": remote,
			"reason": err.Error(),
		}).Warn("registration rejected")
		s.reply(conn, relay.RegistrationReply{Status: "error", Reason: err.Error()})
		return
	}

	if err = s.reply(conn, relay.RegistrationReply{Status: "ok", RoomID: reg.RoomID}); err != nil {
		return
	}

	m := &member{conn: conn, username: reg.Username, host: reg.IsHost}
	s.registry.add(reg.RoomID, m)

	s.logger.WithFields(logrus.Fields{
		"remote":  remote,
		"room":    reg.RoomID,
		"user":    reg.Username,
		"is_host": reg.IsHost,
		"members": s.registry.memberCount(reg.RoomID),
	}).Info("peer joined room")

	s.notify(reg.RoomID, m, fmt.Sprintf("%s joined the chat", reg.Username))
	s.forwardLoop(reg.RoomID, m, reader)

	s.registry.remove(reg.RoomID, m)
	s.notify(reg.RoomID, m, fmt.Sprintf("%s left the chat", reg.Username))

	s.logger.WithFields(logrus.Fields{
		"remote": remote,
		"room":   reg.RoomID,
		"user":   reg.Username,
	}).Info("peer left room")
}

func (s *RelayServer) readRegistration(conn net.Conn, reader *bufio.Reader) (relay.Registration, error) {
	if err := conn.SetReadDeadline(time.Now().Add(registrationTimeout)); err != nil {
		return relay.Registration{}, err
	}
	defer conn.SetReadDeadline(time.Time{})

	line, err := reader.ReadBytes('\n')
	if err != nil {
		return relay.Registration{}, fmt.Errorf("read registration: %w", err)
	}

	var reg relay.Registration
	if err = json.Unmarshal(bytes.TrimSpace(line), &reg); err != nil {
		return relay.Registration{}, fmt.Errorf("malformed registration: %w", err)
	}
	if reg.Type != relay.TypeConnect {
		return relay.Registration{}, fmt.Errorf("unexpected envelope type %q", reg.Type)
	}
	if reg.RoomID == "" {
		return relay.Registration{}, fmt.Errorf("room_id required")
	}

	return reg, nil
}

func (s *RelayServer) reply(conn net.Conn, r relay.RegistrationReply) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(payload, '\n'))
	return err
}

// forwardLoop relays every line from m to the other members of the room,
// verbatim. The daemon does not interpret message envelopes; it is a dumb
// pipe between registered sockets.
func (s *RelayServer) forwardLoop(roomID string, sender *member, reader *bufio.Reader) {
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		line = bytes.TrimRight(line, "\n")
		if len(line) == 0 {
			continue
		}

		for _, other := range s.registry.others(roomID, sender) {
			if errWrite := other.writeLine(line); errWrite != nil {
				s.logger.WithFields(logrus.Fields{
					"room": roomID,
					"user": other.username,
				}).Warn("forward failed, dropping member")
				other.conn.Close()
			}
		}
	}
}

func (s *RelayServer) notify(roomID string, about *member, text string) {
	env := relay.Envelope{Type: relay.TypeMessage, Content: text}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}

	for _, other := range s.registry.others(roomID, about) {
		if errWrite := other.writeLine(payload); errWrite != nil {
			other.conn.Close()
		}
	}
}

// Package chat runs a bidirectional session over one established transport:
// a foreground loop reading operator input and a background loop receiving
// peer traffic, until either side ends the session or the connection fails.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"

	errs "github.com/komomoko/komochat/pkg/error"
	"github.com/komomoko/komochat/pkg/transport"
)

// Session owns its transport exclusively and closes it exactly once, no
// matter which loop terminates first.
type Session struct {
	tr          transport.Transport
	input       io.Reader
	output      io.Writer
	localName   string
	peerName    string
	pollTimeout time.Duration
	logger      logr.Logger

	done       chan struct{}
	finishOnce sync.Once

	errMu sync.Mutex
	err   error
}

func NewSession(tr transport.Transport, opts ...Option) *Session {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Session{
		tr:          tr,
		input:       cfg.input,
		output:      cfg.output,
		localName:   cfg.localName,
		peerName:    cfg.peerName,
		pollTimeout: cfg.pollTimeout,
		logger:      cfg.logger,
		done:        make(chan struct{}),
	}
}

// Run blocks until the session ends. It returns nil on an orderly end from
// either side and the transport error when the connection was lost. The
// transport is released exactly once in every case.
func (s *Session) Run(ctx context.Context) error {
	go s.receiveLoop()
	go s.watchContext(ctx)

	fmt.Fprintf(s.output, "Connected to %s (%s)\n", s.tr.RemoteAddr(), s.tr.Kind())
	fmt.Fprintf(s.output, "Type /help for commands\n\n")
	s.printPrompt()

	// Input runs in its own goroutine so a peer-initiated end never stays
	// blocked behind an interactive read.
	lines := make(chan string)
	go s.readInput(lines)

	for {
		select {
		case <-s.done:
			return s.runErr()

		case line, ok := <-lines:
			if !ok {
				s.end()
				return s.runErr()
			}
			if !s.handleLine(line) {
				return s.runErr()
			}
		}
	}
}

// handleLine processes one input line; false means the session is over.
func (s *Session) handleLine(line string) bool {
	if line == "" {
		s.printPrompt()
		return true
	}

	if handled, quit := s.runCommand(line); handled {
		if quit {
			s.end()
			return false
		}
		s.printPrompt()
		return true
	}

	if err := s.tr.Send(transport.Text(line)); err != nil {
		s.reportOnce(fmt.Sprintf("Failed to send message: connection lost (%v)", err))
		s.finish(err)
		return false
	}

	s.printPrompt()
	return true
}

func (s *Session) readInput(lines chan<- string) {
	scanner := bufio.NewScanner(s.input)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
	close(lines)
}

func (s *Session) receiveLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		env, ok, err := s.tr.Receive(s.pollTimeout)
		if err != nil {
			if s.finished() || errors.Is(err, errs.ErrTransportClosed) {
				return
			}
			s.reportOnce(fmt.Sprintf("Connection lost: %v", err))
			s.finish(err)
			return
		}
		if !ok {
			continue
		}

		if env.Kind == transport.EnvelopeEnd {
			s.reportOnce(fmt.Sprintf("%s has ended the chat.", s.senderName(env)))
			s.finish(nil)
			return
		}

		fmt.Fprintf(s.output, "\r%s: %s\n", s.senderName(env), env.Body)
		s.printPrompt()
	}
}

func (s *Session) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		// Operator abort: one best-effort end signal, then teardown.
		s.end()
	case <-s.done:
	}
}

// end signals end-of-session to the peer (best effort) and tears down.
func (s *Session) end() {
	_ = s.tr.Send(transport.End())
	s.reportOnce("Ending chat...")
	s.finish(nil)
}

// finish stops both loops and releases the transport. Only the first caller
// wins; the transport's own latch makes the close idempotent besides.
func (s *Session) finish(err error) {
	s.finishOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()

		close(s.done)

		if errClose := s.tr.Close(); errClose != nil {
			s.logger.V(1).Info("transport close failed", "reason", errClose.Error())
		}
	})
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) runErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) senderName(env transport.Envelope) string {
	if env.From != "" {
		return env.From
	}
	return s.peerName
}

func (s *Session) printPrompt() {
	fmt.Fprintf(s.output, "%s: ", s.localName)
}

func (s *Session) reportOnce(msg string) {
	if s.finished() {
		return
	}
	fmt.Fprintf(s.output, "\n%s\n", msg)
}

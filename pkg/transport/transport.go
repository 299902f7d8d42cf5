// Package transport abstracts the established connection - direct TCP
// stream, punched UDP pair or relayed stream - behind one envelope-based
// send/receive surface owned by exactly one chat session.
package transport

import (
	"sync/atomic"
	"time"
)

// EnvelopeKind tags an envelope as user text or a control signal.
type EnvelopeKind int

const (
	EnvelopeText EnvelopeKind = iota
	EnvelopeEnd
)

// EndLiteral is the reserved wire encoding of the end-of-session control
// frame on the raw stream and datagram paths. It must never be transmitted
// as ordinary user text through those paths; a user typing it literally ends
// the session, a known protocol limitation. The relayed path carries a
// structured envelope instead and has no such ambiguity.
const EndLiteral = "/exit"

// Envelope is the logical unit moved over a transport. From names the
// sender when the underlying protocol carries one (relayed path only).
type Envelope struct {
	Kind EnvelopeKind
	Body string
	From string
}

func Text(body string) Envelope {
	return Envelope{Kind: EnvelopeText, Body: body}
}

func End() Envelope {
	return Envelope{Kind: EnvelopeEnd}
}

// Transport is the uniform surface over the three connection paths.
//
// Concurrency contract: at most one logical sender and one logical receiver;
// sends and receives may run concurrently with each other. Close is
// idempotent and safe to call concurrently with in-flight I/O.
type Transport interface {
	// Send writes one envelope. Fails with ErrTransportClosed after Close.
	Send(env Envelope) error

	// Receive blocks up to timeout for the next envelope. ok is false on
	// timeout, which is not an error. A returned error means the connection
	// is gone.
	Receive(timeout time.Duration) (Envelope, bool, error)

	// Close releases the underlying socket. Only the first call does work.
	Close() error

	RemoteAddr() string
	Kind() string
}

// closeLatch is the one-shot close guard shared by the implementations.
// Blocking reads cannot be interrupted by a mutex, so closing flips the flag
// first and then closes the socket, which unblocks any in-flight read.
type closeLatch struct {
	closed atomic.Bool
}

// beginClose reports whether this call won the latch.
func (l *closeLatch) beginClose() bool {
	return l.closed.CompareAndSwap(false, true)
}

func (l *closeLatch) isClosed() bool {
	return l.closed.Load()
}

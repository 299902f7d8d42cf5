package transport

import (
	"net"
	"time"

	errs "github.com/komomoko/komochat/pkg/error"
)

const streamBufferSize = 4096

// Stream carries raw UTF-8 text frames over an established TCP connection,
// either a direct peer stream or one accepted from a listener.
type Stream struct {
	closeLatch
	conn net.Conn
	buf  []byte
}

func NewStream(conn net.Conn) *Stream {
	return &Stream{
		conn: conn,
		buf:  make([]byte, streamBufferSize),
	}
}

func (t *Stream) Send(env Envelope) error {
	if t.isClosed() {
		return errs.ErrTransportClosed
	}

	_, err := t.conn.Write([]byte(encodeRaw(env)))
	return err
}

func (t *Stream) Receive(timeout time.Duration) (Envelope, bool, error) {
	if t.isClosed() {
		return Envelope{}, false, errs.ErrTransportClosed
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Envelope{}, false, err
	}

	n, err := t.conn.Read(t.buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return Envelope{}, false, nil
		}
		return Envelope{}, false, err
	}

	return decodeRaw(string(t.buf[:n])), true, nil
}

func (t *Stream) Close() error {
	if !t.beginClose() {
		return nil
	}
	return t.conn.Close()
}

func (t *Stream) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *Stream) Kind() string {
	return "tcp"
}

// encodeRaw serializes an envelope to the legacy-compatible raw frame.
func encodeRaw(env Envelope) string {
	if env.Kind == EnvelopeEnd {
		return EndLiteral
	}
	return env.Body
}

// decodeRaw recognizes the reserved control literal in a raw frame.
func decodeRaw(frame string) Envelope {
	if frame == EndLiteral {
		return End()
	}
	return Text(frame)
}

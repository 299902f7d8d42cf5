package transport

import (
	"net"
	"time"

	errs "github.com/komomoko/komochat/pkg/error"
	"github.com/komomoko/komochat/pkg/punch"
)

const datagramBufferSize = 4096

// Datagram carries text frames over a punched UDP socket fixed to one remote
// address. Datagrams from any other sender are dropped, as are stray
// handshake retransmits that arrive after negotiation completed.
type Datagram struct {
	closeLatch
	conn   *net.UDPConn
	remote *net.UDPAddr
	buf    []byte
}

func NewDatagram(conn *net.UDPConn, remote *net.UDPAddr) *Datagram {
	return &Datagram{
		conn:   conn,
		remote: remote,
		buf:    make([]byte, datagramBufferSize),
	}
}

func (t *Datagram) Send(env Envelope) error {
	if t.isClosed() {
		return errs.ErrTransportClosed
	}

	_, err := t.conn.WriteToUDP([]byte(encodeRaw(env)), t.remote)
	return err
}

func (t *Datagram) Receive(timeout time.Duration) (Envelope, bool, error) {
	if t.isClosed() {
		return Envelope{}, false, errs.ErrTransportClosed
	}

	deadline := time.Now().Add(timeout)
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return Envelope{}, false, err
	}

	for {
		n, addr, err := t.conn.ReadFromUDP(t.buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return Envelope{}, false, nil
			}
			return Envelope{}, false, err
		}

		if !addr.IP.Equal(t.remote.IP) || addr.Port != t.remote.Port {
			continue
		}

		frame := string(t.buf[:n])
		if frame == punch.HelloLiteral || frame == punch.AckLiteral {
			continue
		}

		return decodeRaw(frame), true, nil
	}
}

func (t *Datagram) Close() error {
	if !t.beginClose() {
		return nil
	}
	return t.conn.Close()
}

func (t *Datagram) RemoteAddr() string {
	return t.remote.String()
}

func (t *Datagram) Kind() string {
	return "udp"
}

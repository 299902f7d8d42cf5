package transport

import (
	"time"

	errs "github.com/komomoko/komochat/pkg/error"
	"github.com/komomoko/komochat/pkg/relay"
)

// Relayed carries structured envelopes over an established relay session.
// End of session is an explicit envelope type here, so user text can never
// collide with the control channel.
type Relayed struct {
	closeLatch
	session *relay.Session
}

func NewRelayed(session *relay.Session) *Relayed {
	return &Relayed{session: session}
}

func (t *Relayed) Send(env Envelope) error {
	if t.isClosed() {
		return errs.ErrTransportClosed
	}

	if env.Kind == EnvelopeEnd {
		return t.session.SendEnd()
	}
	return t.session.Send(env.Body)
}

func (t *Relayed) Receive(timeout time.Duration) (Envelope, bool, error) {
	if t.isClosed() {
		return Envelope{}, false, errs.ErrTransportClosed
	}

	wireEnv, ok, err := t.session.Receive(timeout)
	if err != nil || !ok {
		return Envelope{}, false, err
	}

	if wireEnv.Type == relay.TypeEnd {
		return Envelope{Kind: EnvelopeEnd, From: wireEnv.From}, true, nil
	}
	return Envelope{Kind: EnvelopeText, Body: wireEnv.Content, From: wireEnv.From}, true, nil
}

func (t *Relayed) Close() error {
	if !t.beginClose() {
		return nil
	}
	return t.session.Close()
}

func (t *Relayed) RemoteAddr() string {
	return t.session.RemoteAddr()
}

func (t *Relayed) Kind() string {
	return "relay"
}

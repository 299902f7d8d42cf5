package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/komomoko/komochat/pkg/error"
)

func TestStreamSendReceive(t *testing.T) {
	a, b := net.Pipe()
	left := NewStream(a)
	right := NewStream(b)
	defer left.Close()
	defer right.Close()

	go func() {
		left.Send(Text("hello"))
	}()

	env, ok, err := right.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EnvelopeText, env.Kind)
	assert.Equal(t, "hello", env.Body)
}

func TestStreamEndFrame(t *testing.T) {
	a, b := net.Pipe()
	left := NewStream(a)
	right := NewStream(b)
	defer left.Close()
	defer right.Close()

	go func() {
		left.Send(End())
	}()

	env, ok, err := right.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EnvelopeEnd, env.Kind)
}

func TestStreamReceiveTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	tr := NewStream(b)
	defer tr.Close()

	_, ok, err := tr.Receive(50 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	tr := NewStream(a)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	err := tr.Send(Text("late"))
	assert.True(t, errors.Is(err, errs.ErrTransportClosed))

	_, _, err = tr.Receive(10 * time.Millisecond)
	assert.True(t, errors.Is(err, errs.ErrTransportClosed))
}

func TestRawCodec(t *testing.T) {
	assert.Equal(t, EndLiteral, encodeRaw(End()))
	assert.Equal(t, "hi", encodeRaw(Text("hi")))

	assert.Equal(t, EnvelopeEnd, decodeRaw(EndLiteral).Kind)
	assert.Equal(t, Envelope{Kind: EnvelopeText, Body: "hi"}, decodeRaw("hi"))
}

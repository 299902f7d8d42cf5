package connect

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/komomoko/komochat/pkg/error"
	"github.com/komomoko/komochat/pkg/peer"
	"github.com/komomoko/komochat/pkg/punch"
	"github.com/komomoko/komochat/pkg/relay"
)

type stubDialer struct {
	conn  net.Conn
	err   error
	calls int
}

func (d *stubDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.calls++
	return d.conn, d.err
}

type stubAcceptor struct {
	conn  net.Conn
	err   error
	calls int
}

func (a *stubAcceptor) AcceptOne(context.Context, int, time.Duration) (net.Conn, error) {
	a.calls++
	return a.conn, a.err
}

type stubPuncher struct {
	hostRes   *punch.Result
	hostErr   error
	dialRes   *punch.Result
	dialErr   error
	hostCalls int
	dialCalls int
}

func (p *stubPuncher) Host(context.Context, int) (*punch.Result, error) {
	p.hostCalls++
	return p.hostRes, p.hostErr
}

func (p *stubPuncher) Dial(context.Context, *net.UDPAddr) (*punch.Result, error) {
	p.dialCalls++
	return p.dialRes, p.dialErr
}

type stubMapper struct {
	port int
	err  error
}

func (m *stubMapper) Map(port int) (string, error) {
	m.port = port
	return "198.51.100.9", m.err
}

func pipeConn(t *testing.T) net.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a
}

func punchResult(t *testing.T) *punch.Result {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &punch.Result{
		Conn:   conn,
		Remote: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000},
	}
}

// startAcceptingRelay answers any registration with a success reply.
func startAcceptingRelay(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, errAccept := ln.Accept()
			if errAccept != nil {
				return
			}
			go func(c net.Conn) {
				reader := bufio.NewReader(c)
				reader.ReadBytes('\n')
				c.Write([]byte(`{"status":"ok"}` + "\n"))
				reader.ReadBytes('\n')
				c.Close()
			}(conn)
		}
	}()

	return ln.Addr().String()
}

func TestConnectDirectWinsForGuest(t *testing.T) {
	dialer := &stubDialer{conn: pipeConn(t)}
	puncher := &stubPuncher{dialErr: errors.New("never reached")}

	c := NewConnector(WithDialer(dialer), WithPuncher(puncher))

	target := peer.Endpoint{IP: "203.0.113.10", Port: 9999}
	res, err := c.Connect(context.Background(), Request{Target: target})
	require.NoError(t, err)
	defer res.Transport.Close()

	assert.Equal(t, MethodDirect, res.Method)
	assert.Equal(t, 1, dialer.calls)
	assert.Zero(t, puncher.dialCalls)
}

func TestConnectFallsBackToPunchForGuest(t *testing.T) {
	dialer := &stubDialer{err: errors.New("connection refused")}
	puncher := &stubPuncher{dialRes: punchResult(t)}

	c := NewConnector(WithDialer(dialer), WithPuncher(puncher))

	target := peer.Endpoint{IP: "127.0.0.1", Port: 9999}
	res, err := c.Connect(context.Background(), Request{Target: target})
	require.NoError(t, err)

	assert.Equal(t, MethodPunch, res.Method)
	assert.Equal(t, 1, dialer.calls)
	assert.Equal(t, 1, puncher.dialCalls)
}

func TestConnectHostPunchThenListen(t *testing.T) {
	puncher := &stubPuncher{hostErr: errors.New("punch timeout")}
	acceptor := &stubAcceptor{conn: pipeConn(t)}
	mapper := &stubMapper{}

	c := NewConnector(
		WithPuncher(puncher),
		WithAcceptor(acceptor),
		WithPortMapper(mapper),
	)

	res, err := c.Connect(context.Background(), Request{Host: true, ListenPort: 9999})
	require.NoError(t, err)
	defer res.Transport.Close()

	assert.Equal(t, MethodListen, res.Method)
	assert.Equal(t, 1, puncher.hostCalls)
	assert.Equal(t, 1, acceptor.calls)
	assert.Equal(t, 9999, mapper.port)
}

func TestConnectListenSurvivesMapperFailure(t *testing.T) {
	puncher := &stubPuncher{hostErr: errors.New("punch timeout")}
	acceptor := &stubAcceptor{conn: pipeConn(t)}
	mapper := &stubMapper{err: errors.New("no upnp gateway")}

	c := NewConnector(
		WithPuncher(puncher),
		WithAcceptor(acceptor),
		WithPortMapper(mapper),
	)

	res, err := c.Connect(context.Background(), Request{Host: true, ListenPort: 9999})
	require.NoError(t, err)
	defer res.Transport.Close()

	assert.Equal(t, MethodListen, res.Method)
}

func TestConnectHostFallsBackToRelayWithGeneratedCode(t *testing.T) {
	puncher := &stubPuncher{hostErr: errors.New("punch timeout")}
	acceptor := &stubAcceptor{err: errors.New("nobody came")}
	relayAddr := startAcceptingRelay(t)

	c := NewConnector(
		WithPuncher(puncher),
		WithAcceptor(acceptor),
		WithRelayClient(relay.NewClient([]string{relayAddr})),
	)

	res, err := c.Connect(context.Background(), Request{Host: true, ListenPort: 9999, Username: "ana"})
	require.NoError(t, err)
	defer res.Transport.Close()

	assert.Equal(t, MethodRelay, res.Method)
	assert.Len(t, res.SessionID, 6)
}

func TestConnectGuestUsesSharedRoomCode(t *testing.T) {
	relayAddr := startAcceptingRelay(t)

	c := NewConnector(
		WithRelayClient(relay.NewClient([]string{relayAddr})),
	)

	res, err := c.Connect(context.Background(), Request{SessionID: "ABCDEF", Username: "bo"})
	require.NoError(t, err)
	defer res.Transport.Close()

	assert.Equal(t, MethodRelay, res.Method)
	// Nothing was generated, the operator already had the code.
	assert.Empty(t, res.SessionID)
}

func TestConnectGuestWithoutTargetOrCodeFails(t *testing.T) {
	c := NewConnector(WithRelayClient(relay.NewClient(nil)))

	_, err := c.Connect(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAllMethodsFailed))
}

func TestConnectExhaustedWithoutRelayClient(t *testing.T) {
	dialer := &stubDialer{err: errors.New("connection refused")}
	puncher := &stubPuncher{dialErr: errors.New("punch timeout")}

	c := NewConnector(WithDialer(dialer), WithPuncher(puncher))

	target := peer.Endpoint{IP: "127.0.0.1", Port: 9999}
	_, err := c.Connect(context.Background(), Request{Target: target})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAllMethodsFailed))
}

package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komomoko/komochat/pkg/relay"
)

func startTestServer(t *testing.T) *RelayServer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	srv := New(logger)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	return srv
}

func connectMember(t *testing.T, addr, room, user string, host bool) *relay.Session {
	t.Helper()

	role := relay.RoleGuest
	if host {
		role = relay.RoleHost
	}

	client := relay.NewClient([]string{addr})
	session, err := client.Connect(context.Background(), room, role, user)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

func TestRoomRoundTrip(t *testing.T) {
	srv := startTestServer(t)

	host := connectMember(t, srv.Addr(), "ROOM42", "ana", true)
	guest := connectMember(t, srv.Addr(), "ROOM42", "bo", false)

	// The host is told about the new member.
	env, ok, err := host.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, relay.TypeMessage, env.Type)
	assert.Contains(t, env.Content, "bo joined")

	require.NoError(t, guest.Send("hello from bo"))

	env, ok, err = host.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello from bo", env.Content)
	assert.Equal(t, "bo", env.From)

	require.NoError(t, host.Send("hello from ana"))

	env, ok, err = guest.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello from ana", env.Content)
	assert.Equal(t, "ana", env.From)

	require.NoError(t, host.SendEnd())

	env, ok, err = guest.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, relay.TypeEnd, env.Type)
}

func TestMemberLeaveIsAnnounced(t *testing.T) {
	srv := startTestServer(t)

	host := connectMember(t, srv.Addr(), "ROOM42", "ana", true)
	guest := connectMember(t, srv.Addr(), "ROOM42", "bo", false)

	env, ok, err := host.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, env.Content, "bo joined")

	require.NoError(t, guest.Close())

	env, ok, err = host.Receive(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, env.Content, "bo left")
}

func TestRoomsAreIsolated(t *testing.T) {
	srv := startTestServer(t)

	a := connectMember(t, srv.Addr(), "ROOM-A", "ana", true)
	b := connectMember(t, srv.Addr(), "ROOM-B", "bo", true)

	require.NoError(t, a.Send("only for room a"))

	_, ok, err := b.Receive(300 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedRegistrationRejected(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("this is not a registration\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, reply, `"status":"error"`)
}

func TestMissingRoomIDRejected(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"type":"connect","room_id":"","username":"ana"}` + "\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, reply, `"status":"error"`)
}

func TestHTTPEndpoints(t *testing.T) {
	srv := startTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	require.NoError(t, srv.StartHTTP(addr))

	client := &http.Client{Timeout: time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var errGet error
		resp, errGet = client.Get(fmt.Sprintf("http://%s/healthz", addr))
		return errGet == nil
	}, 3*time.Second, 50*time.Millisecond)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = client.Get(fmt.Sprintf("http://%s/v1/ip", addr))
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", string(body))
}

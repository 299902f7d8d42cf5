package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		ep, err := ParseEndpoint("203.0.113.10:9999")
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.10", ep.IP)
		assert.Equal(t, 9999, ep.Port)
		assert.Equal(t, "203.0.113.10:9999", ep.String())
	})

	t.Run("MissingPort", func(t *testing.T) {
		_, err := ParseEndpoint("203.0.113.10")
		assert.Error(t, err)
	})

	t.Run("NonNumericPort", func(t *testing.T) {
		_, err := ParseEndpoint("203.0.113.10:abc")
		assert.Error(t, err)
	})

	t.Run("PortOutOfRange", func(t *testing.T) {
		_, err := ParseEndpoint("203.0.113.10:70000")
		assert.Error(t, err)

		_, err = ParseEndpoint("203.0.113.10:0")
		assert.Error(t, err)
	})
}

func TestEndpointEqual(t *testing.T) {
	a := Endpoint{IP: "10.0.0.1", Port: 80}
	b := Endpoint{IP: "10.0.0.1", Port: 80}
	c := Endpoint{IP: "10.0.0.1", Port: 81}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestEndpointIsZero(t *testing.T) {
	assert.True(t, Endpoint{}.IsZero())
	assert.False(t, Endpoint{IP: "10.0.0.1", Port: 80}.IsZero())
}

func TestEndpointAddrs(t *testing.T) {
	ep := Endpoint{IP: "127.0.0.1", Port: 4242}

	udp, err := ep.UDPAddr()
	require.NoError(t, err)
	assert.Equal(t, 4242, udp.Port)

	tcp, err := ep.TCPAddr()
	require.NoError(t, err)
	assert.Equal(t, 4242, tcp.Port)
}

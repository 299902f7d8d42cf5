package peer

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint identifies a socket endpoint. It is immutable once resolved; two
// endpoints are equal iff both IP and port match.
type Endpoint struct {
	IP   string
	Port int
}

// ParseEndpoint parses "host:port" into an Endpoint, validating the port range.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}

	return NewEndpoint(host, port)
}

// NewEndpoint builds an Endpoint, validating the port range.
func NewEndpoint(ip string, port int) (Endpoint, error) {
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return Endpoint{IP: ip, Port: port}, nil
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

func (e Endpoint) Equal(other Endpoint) bool {
	return e.IP == other.IP && e.Port == other.Port
}

func (e Endpoint) IsZero() bool {
	return e.IP == "" && e.Port == 0
}

// UDPAddr resolves the endpoint into a UDP address.
func (e Endpoint) UDPAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", e.String())
}

// TCPAddr resolves the endpoint into a TCP address.
func (e Endpoint) TCPAddr() (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", e.String())
}

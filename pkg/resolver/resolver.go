// Package resolver discovers the local and externally visible address of the
// running process. Public discovery asks STUN-style servers for the mapped
// address and falls back to plain-HTTP "what is my IP" endpoints. Every step
// is best effort: callers receive ok=false, never an error.
package resolver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/komomoko/komochat/pkg/peer"
)

// routeProbeAddr forces OS route selection when reading the local address.
// No packet is ever sent to it.
const routeProbeAddr = "8.8.8.8:80"

const maxResponseSizeBytes = 1024

var errNotAnIP = errors.New("response body is not an IP address")

type Resolver struct {
	stunServers   []string
	stunTimeout   time.Duration
	httpEndpoints []string
	httpClient    *http.Client
	logger        logr.Logger
}

func New(opts ...Option) *Resolver {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Resolver{
		stunServers:   cfg.stunServers,
		stunTimeout:   cfg.stunTimeout,
		httpEndpoints: cfg.httpEndpoints,
		httpClient:    &http.Client{Timeout: cfg.httpTimeout},
		logger:        cfg.logger,
	}
}

// LocalAddr reports the address the OS would route outbound traffic from.
// It degrades to loopback when no route exists and never fails.
func (r *Resolver) LocalAddr() peer.Endpoint {
	conn, err := net.Dial("udp", routeProbeAddr)
	if err != nil {
		return peer.Endpoint{IP: "127.0.0.1", Port: 0}
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.UDPAddr)
	return peer.Endpoint{IP: local.IP.String(), Port: local.Port}
}

// PublicAddr discovers the externally visible endpoint. It tries each
// discovery server in order, then the HTTP fallback endpoints. ok is false
// when every strategy failed; that means "unknown", not an error.
func (r *Resolver) PublicAddr(ctx context.Context) (peer.Endpoint, bool) {
	for _, server := range r.stunServers {
		ep, err := r.queryDiscoveryServer(ctx, server)
		if err != nil {
			r.logger.V(1).Info("discovery server failed", "server", server, "reason", err.Error())
			continue
		}
		return ep, true
	}

	for _, url := range r.httpEndpoints {
		ep, err := r.queryHTTPEndpoint(ctx, url)
		if err != nil {
			r.logger.V(1).Info("http ip endpoint failed", "url", url, "reason", err.Error())
			continue
		}
		return ep, true
	}

	return peer.Endpoint{}, false
}

func (r *Resolver) queryDiscoveryServer(ctx context.Context, server string) (peer.Endpoint, error) {
	conn, err := net.Dial("udp", server)
	if err != nil {
		return peer.Endpoint{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(r.stunTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return peer.Endpoint{}, err
	}

	req, err := buildBindingRequest()
	if err != nil {
		return peer.Endpoint{}, err
	}
	if _, err = conn.Write(req); err != nil {
		return peer.Endpoint{}, err
	}

	buf := make([]byte, maxResponseSizeBytes)
	n, err := conn.Read(buf)
	if err != nil {
		return peer.Endpoint{}, err
	}

	return parseBindingResponse(buf[:n])
}

func (r *Resolver) queryHTTPEndpoint(ctx context.Context, url string) (peer.Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return peer.Endpoint{}, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return peer.Endpoint{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return peer.Endpoint{}, err
	}

	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return peer.Endpoint{}, errNotAnIP
	}

	// HTTP endpoints only reveal the address, not the mapped port.
	return peer.Endpoint{IP: ip.String(), Port: 0}, nil
}

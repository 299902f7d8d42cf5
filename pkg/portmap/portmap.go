// Package portmap is the best-effort automatic port mapping collaborator.
// A gateway that does not speak UPnP, or one that cannot be discovered in
// time, yields an error the caller treats as "capability unavailable" -
// never as a fatal condition.
package portmap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"
)

const (
	defaultDiscoveryTimeout = 2 * time.Second

	mappingDescription = "komochat"
	leaseSeconds       = 3600
	protocolTCP        = "TCP"
)

// igdClient is the slice of the gateway API the mapper needs. Both the
// goupnp IGDv1 and IGDv2 connection clients satisfy it.
type igdClient interface {
	AddPortMapping(
		newRemoteHost string,
		newExternalPort uint16,
		newProtocol string,
		newInternalPort uint16,
		newInternalClient string,
		newEnabled bool,
		newPortMappingDescription string,
		newLeaseDuration uint32,
	) error

	DeletePortMapping(
		newRemoteHost string,
		newExternalPort uint16,
		newProtocol string,
	) error

	GetExternalIPAddress() (string, error)
}

type Mapper struct {
	client     igdClient
	internalIP string
	logger     logr.Logger

	mu       sync.Mutex
	mappings map[int]struct{}
}

// Discover probes the local gateway for a UPnP IGD endpoint, newest dialect
// first. goupnp's own discovery can block for several seconds, so the probe
// runs under a hard timeout.
func Discover(ctx context.Context, internalIP string, opts ...Option) (*Mapper, error) {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	type result struct {
		client igdClient
		err    error
	}

	resultCh := make(chan result, 1)
	go func() {
		client, err := probeGateway()
		resultCh <- result{client: client, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return &Mapper{
			client:     res.client,
			internalIP: internalIP,
			logger:     cfg.logger,
			mappings:   make(map[int]struct{}),
		}, nil
	case <-time.After(cfg.discoveryTimeout):
		return nil, fmt.Errorf("upnp discovery timed out after %v", cfg.discoveryTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func probeGateway() (igdClient, error) {
	if clients, _, err := internetgateway2.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, err := internetgateway2.NewWANPPPConnection1Clients(); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	return nil, fmt.Errorf("no UPnP gateway found")
}

// Map opens a TCP mapping with identical internal and external port and
// returns the gateway's external IP address.
func (m *Mapper) Map(port int) (string, error) {
	err := m.client.AddPortMapping(
		"",
		uint16(port),
		protocolTCP,
		uint16(port),
		m.internalIP,
		true,
		mappingDescription,
		leaseSeconds,
	)
	if err != nil {
		return "", fmt.Errorf("add port mapping: %w", err)
	}

	m.mu.Lock()
	m.mappings[port] = struct{}{}
	m.mu.Unlock()

	externalIP, err := m.client.GetExternalIPAddress()
	if err != nil {
		return "", fmt.Errorf("get external ip: %w", err)
	}

	m.logger.Info("port mapped", "port", port, "external_ip", externalIP)
	return externalIP, nil
}

// Unmap removes a mapping created by Map.
func (m *Mapper) Unmap(port int) error {
	m.mu.Lock()
	delete(m.mappings, port)
	m.mu.Unlock()

	if err := m.client.DeletePortMapping("", uint16(port), protocolTCP); err != nil {
		return fmt.Errorf("delete port mapping: %w", err)
	}
	return nil
}

// Close removes every live mapping.
func (m *Mapper) Close() error {
	m.mu.Lock()
	ports := make([]int, 0, len(m.mappings))
	for port := range m.mappings {
		ports = append(ports, port)
	}
	m.mu.Unlock()

	var lastErr error
	for _, port := range ports {
		if err := m.Unmap(port); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

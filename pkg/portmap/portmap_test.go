package portmap

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIGD struct {
	mu      sync.Mutex
	added   []uint16
	removed []uint16
	addErr  error
}

func (f *fakeIGD) AddPortMapping(_ string, externalPort uint16, _ string, _ uint16, _ string, _ bool, _ string, _ uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, externalPort)
	return nil
}

func (f *fakeIGD) DeletePortMapping(_ string, externalPort uint16, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, externalPort)
	return nil
}

func (f *fakeIGD) GetExternalIPAddress() (string, error) {
	return "198.51.100.23", nil
}

func newTestMapper(client igdClient) *Mapper {
	return &Mapper{
		client:     client,
		internalIP: "192.168.1.50",
		logger:     logr.Discard(),
		mappings:   make(map[int]struct{}),
	}
}

func TestMapperMap(t *testing.T) {
	igd := &fakeIGD{}
	m := newTestMapper(igd)

	externalIP, err := m.Map(9999)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.23", externalIP)
	assert.Equal(t, []uint16{9999}, igd.added)
}

func TestMapperMapGatewayRefuses(t *testing.T) {
	igd := &fakeIGD{addErr: errors.New("conflict")}
	m := newTestMapper(igd)

	_, err := m.Map(9999)
	assert.Error(t, err)
}

func TestMapperUnmap(t *testing.T) {
	igd := &fakeIGD{}
	m := newTestMapper(igd)

	_, err := m.Map(9999)
	require.NoError(t, err)
	require.NoError(t, m.Unmap(9999))
	assert.Equal(t, []uint16{9999}, igd.removed)
}

func TestMapperCloseRemovesAllMappings(t *testing.T) {
	igd := &fakeIGD{}
	m := newTestMapper(igd)

	_, err := m.Map(9999)
	require.NoError(t, err)
	_, err = m.Map(10000)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.ElementsMatch(t, []uint16{9999, 10000}, igd.removed)
}

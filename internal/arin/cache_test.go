package arin

import (
	"context"
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	addr, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return addr
}

// memCacheStore is an in-memory CacheStore for tests.
type memCacheStore struct {
	mu      sync.Mutex
	entries map[string]model.IpOwnership
	puts    int
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{entries: make(map[string]model.IpOwnership)}
}

func (m *memCacheStore) PutIPOwnership(ctx context.Context, e model.IpOwnership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.IP] = e
	m.puts++
	return nil
}

func (m *memCacheStore) ListIPOwnership(ctx context.Context) ([]model.IpOwnership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.IpOwnership, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func TestCache_PutGet(t *testing.T) {
	c := NewCache(nil)
	_, ok := c.Get("198.51.100.7")
	assert.False(t, ok)

	c.Put(context.Background(), model.IpOwnership{IP: "198.51.100.7", Organization: "Comcast"})
	e, ok := c.Get("198.51.100.7")
	require.True(t, ok)
	assert.Equal(t, "Comcast", e.Organization)
	assert.False(t, e.ResolvedAt.IsZero(), "Put stamps ResolvedAt")
}

func TestCache_WriteThrough(t *testing.T) {
	st := newMemCacheStore()
	c := NewCache(st)
	c.Put(context.Background(), model.IpOwnership{IP: "1.2.3.4", Organization: "AT&T"})
	assert.Equal(t, 1, st.puts)
	assert.Equal(t, "AT&T", st.entries["1.2.3.4"].Organization)
}

func TestCache_Warm(t *testing.T) {
	st := newMemCacheStore()
	require.NoError(t, st.PutIPOwnership(context.Background(),
		model.IpOwnership{IP: "1.2.3.4", Organization: "AT&T"}))
	require.NoError(t, st.PutIPOwnership(context.Background(),
		model.IpOwnership{IP: "5.6.7.8", Organization: "Cox"}))

	c := NewCache(st)
	require.NoError(t, c.Warm(context.Background()))
	assert.Equal(t, 2, c.Len())

	e, ok := c.Get("5.6.7.8")
	require.True(t, ok)
	assert.Equal(t, "Cox", e.Organization)
}

func TestCache_ConcurrentWriters(t *testing.T) {
	c := NewCache(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put(context.Background(), model.IpOwnership{IP: "9.9.9.9", Organization: "Quad9"})
			c.Get("9.9.9.9")
		}()
	}
	wg.Wait()
	e, ok := c.Get("9.9.9.9")
	require.True(t, ok)
	assert.Equal(t, "Quad9", e.Organization)
}

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/gateway/gatewaytest"
	"github.com/Skotchmaster/storefront/internal/query"
)

type connectingFake struct {
	*gatewaytest.Fake
	connected bool
}

func (c *connectingFake) Connect(context.Context) error {
	c.connected = true
	return nil
}

func TestSession_Lifecycle(t *testing.T) {
	t.Parallel()

	gw := &connectingFake{Fake: gatewaytest.New()}
	gw.Seed("Milk", "Dairy", 40)

	s := New(gw)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, gw.connected)

	r := query.Fetch(context.Background(), s.Client, s.Queries.AllProducts())
	require.Equal(t, query.Success, r.Status)
	_, ok := s.Store.Get(cache.CatalogAll())
	require.True(t, ok)

	s.Close()
	s.Close()
	assert.True(t, s.Store.Closed())
	_, ok = s.Store.Get(cache.CatalogAll())
	assert.False(t, ok)
}

func TestSession_IndependentStores(t *testing.T) {
	t.Parallel()

	gw := gatewaytest.New()
	a, b := New(gw), New(gw)
	defer a.Close()
	defer b.Close()

	a.Store.Put(cache.CartSummary(), 1)
	_, ok := b.Store.Get(cache.CartSummary())
	assert.False(t, ok)
}

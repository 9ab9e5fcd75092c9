package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/gateway/gatewaytest"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
)

type harness struct {
	gw    *gatewaytest.Fake
	store *cache.Store
	qc    *query.Client
	q     *query.Queries
	d     *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gw := gatewaytest.New()
	store := cache.New()
	qc := query.New(store)
	t.Cleanup(func() {
		qc.Close()
		store.Close()
	})
	return &harness{gw: gw, store: store, qc: qc, q: query.NewQueries(gw, nil), d: New(gw, store)}
}

func (h *harness) cart(t *testing.T) models.CartSummary {
	t.Helper()
	r := query.Fetch(context.Background(), h.qc, h.q.CartSummary())
	require.Equal(t, query.Success, r.Status, "cart fetch: %v", r.Err)
	return r.Data
}

func TestInvalidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want []cache.Key
	}{
		{AddToCart, []cache.Key{cache.Cart}},
		{UpdateQuantity, []cache.Key{cache.Cart}},
		{RemoveFromCart, []cache.Key{cache.Cart}},
		{ClearCart, []cache.Key{cache.Cart}},
		{Checkout, []cache.Key{cache.Cart, cache.Order}},
		{AddProduct, []cache.Key{cache.Catalog}},
		{UpdateProduct, []cache.Key{cache.Catalog}},
		{UpdateOrderStatus, []cache.Key{cache.Order}},
		{AssignRole, []cache.Key{cache.Role}},
		{SaveProfile, []cache.Key{cache.ProfileCaller()}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Invalidates(tt.kind))
		})
	}
}

func TestValidation_RefusedBeforeGateway(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	img := asset.FromURL("http://cdn/milk.png")

	tests := []struct {
		name string
		op   string
		call func() error
	}{
		{"add zero quantity", "AddToCart", func() error { return h.d.AddToCart(ctx, 1, 0) }},
		{"update zero quantity", "UpdateCartItemQuantity", func() error { return h.d.UpdateQuantity(ctx, 1, 0) }},
		{"update negative quantity", "UpdateCartItemQuantity", func() error { return h.d.UpdateQuantity(ctx, 1, -2) }},
		{"unknown payment", "Checkout", func() error { _, err := h.d.Checkout(ctx, "CARD"); return err }},
		{"product without image", "AddProduct", func() error {
			return h.d.AddProduct(ctx, gateway.ProductDraft{Name: "Milk", Category: "Dairy", Price: 40})
		}},
		{"product without name", "AddProduct", func() error {
			return h.d.AddProduct(ctx, gateway.ProductDraft{Category: "Dairy", Price: 40, Image: img})
		}},
		{"product in All", "AddProduct", func() error {
			return h.d.AddProduct(ctx, gateway.ProductDraft{Name: "Milk", Category: "All", Price: 40, Image: img})
		}},
		{"negative price", "UpdateProduct", func() error {
			return h.d.UpdateProduct(ctx, 1, gateway.ProductDraft{Name: "Milk", Category: "Dairy", Price: -1})
		}},
		{"empty status", "UpdateOrderStatus", func() error { return h.d.UpdateOrderStatus(ctx, 1, " ") }},
		{"unknown role", "AssignRole", func() error { return h.d.AssignRole(ctx, "u", "owner") }},
		{"empty profile name", "SaveCallerProfile", func() error { return h.d.SaveProfile(ctx, models.UserProfile{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			var merr *Error
			require.True(t, errors.As(err, &merr))
			assert.ErrorIs(t, err, gateway.ErrValidation)
			assert.Equal(t, 0, h.gw.Calls(tt.op))
		})
	}
}

func TestUpdateProduct_ImageOptional(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gw.SetRole("caller", models.RoleAdmin)
	id := h.gw.Seed("Milk", "Dairy", 40)

	require.NoError(t, h.d.UpdateProduct(context.Background(), id, gateway.ProductDraft{Name: "Milk", Category: "Dairy", Price: 45}))
	p, err := h.gw.GetProduct(context.Background(), id)
	require.NoError(t, err)
	got, _ := p.Get()
	assert.Equal(t, models.Money(45), got.Price)
}

func TestMutation_NotOptimistic(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	milk := h.gw.Seed("Milk", "Dairy", 40)
	before := h.cart(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.gw.On("AddToCart", func(context.Context) error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- h.d.AddToCart(ctx, milk, 2) }()
	<-entered

	assert.Equal(t, 1, h.d.Pending(AddToCart))
	e, ok := h.store.Get(cache.CartSummary())
	require.True(t, ok)
	assert.False(t, e.Stale)
	assert.Equal(t, before, e.Value)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, h.d.Pending(AddToCart))

	e, _ = h.store.Get(cache.CartSummary())
	assert.True(t, e.Stale)
	line, ok := h.cart(t).Line(milk).Get()
	require.True(t, ok)
	assert.Equal(t, int64(2), line.Quantity)
}

func TestMutation_FailureLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.cart(t)
	h.gw.On("ClearCart", func(context.Context) error { return gateway.ErrTransport })

	err := h.d.ClearCart(ctx)
	require.Error(t, err)
	var merr *Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, ClearCart, merr.Kind)
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.Contains(t, err.Error(), "Failed to clear cart")

	e, _ := h.store.Get(cache.CartSummary())
	assert.False(t, e.Stale)
}

func TestMutation_NotConnected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gw.NotReady = true

	err := h.d.RemoveFromCart(context.Background(), 1)
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.Equal(t, 0, h.gw.Calls("RemoveItemFromCart"))
}

func TestAddToCart_SummaryReflectsLine(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	a := h.gw.Seed("Tomato", "Vegetables", 50)
	b := h.gw.Seed("Bread", "Groceries", 30)

	for _, tc := range []struct{ id, qty int64 }{{a, 1}, {b, 1}, {a, 1}} {
		require.NoError(t, h.d.AddToCart(ctx, tc.id, tc.qty))
		s := h.cart(t)
		line, ok := s.Line(tc.id).Get()
		require.True(t, ok)
		assert.GreaterOrEqual(t, line.Quantity, tc.qty)
		require.NoError(t, s.Validate())
	}

	s := h.cart(t)
	assert.Equal(t, models.Money(130), s.Total)
	assert.Equal(t, int64(3), s.TotalItems)
}

func TestUpdateQuantity_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	milk := h.gw.Seed("Milk", "Dairy", 40)
	require.NoError(t, h.d.AddToCart(ctx, milk, 1))
	h.cart(t)

	require.NoError(t, h.d.UpdateQuantity(ctx, milk, 7))
	line, ok := h.cart(t).Line(milk).Get()
	require.True(t, ok)
	assert.Equal(t, int64(7), line.Quantity)
	assert.Equal(t, 2, h.gw.Calls("GetCartSummary"))
}

func TestCheckout_SnapshotSurvivesProductEdit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	a := h.gw.Seed("Tomato", "Vegetables", 50)
	b := h.gw.Seed("Bread", "Groceries", 30)
	require.NoError(t, h.d.AddToCart(ctx, a, 2))
	require.NoError(t, h.d.AddToCart(ctx, b, 1))
	cartAtCheckout := h.cart(t)

	id, err := h.d.Checkout(ctx, models.PaymentUPI)
	require.NoError(t, err)
	require.NotZero(t, id)

	e, _ := h.store.Get(cache.CartSummary())
	assert.True(t, e.Stale)
	assert.True(t, h.cart(t).IsEmpty())

	r := query.Fetch(ctx, h.qc, h.q.Order(id))
	require.Equal(t, query.Success, r.Status)
	assert.Equal(t, cartAtCheckout.Items, r.Data.Products)
	assert.Equal(t, models.Money(130), r.Data.Total)
	assert.Equal(t, models.PaymentUPI, r.Data.PaymentMethod)
	assert.Equal(t, models.OrderStatusPending, r.Data.Status)

	h.gw.SetRole("caller", models.RoleAdmin)
	require.NoError(t, h.d.UpdateProduct(ctx, a, gateway.ProductDraft{Name: "Cherry Tomato", Category: "Vegetables", Price: 99}))
	h.store.Invalidate(cache.Order)

	r = query.Fetch(ctx, h.qc, h.q.Order(id))
	require.Equal(t, query.Success, r.Status)
	assert.Equal(t, "Tomato", r.Data.Products[0].Product.Name)
	assert.Equal(t, models.Money(50), r.Data.Products[0].Product.Price)
}

func TestCheckout_EmptyCart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.d.Checkout(context.Background(), models.PaymentCOD)
	assert.ErrorIs(t, err, gateway.ErrValidation)
}

func TestAddProduct_VisibleInAllAndCategory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.gw.SetRole("caller", models.RoleAdmin)
	h.gw.Seed("Carrot", "Vegetables", 10)

	type snap struct {
		mu   sync.Mutex
		last query.Result[[]models.Product]
	}
	watch := func(opts query.Options[[]models.Product]) (*snap, func()) {
		s := &snap{}
		stop := query.Watch(h.qc, opts, func(r query.Result[[]models.Product]) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.last = r
		})
		return s, stop
	}
	hasMilk := func(s *snap) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, p := range s.last.Data {
			if p.Name == "Milk" {
				return true
			}
		}
		return false
	}

	all, stopAll := watch(h.q.Category(models.CategoryAll))
	defer stopAll()
	dairy, stopDairy := watch(h.q.Category("Dairy"))
	defer stopDairy()

	require.Eventually(t, func() bool {
		all.mu.Lock()
		defer all.mu.Unlock()
		return all.last.Status == query.Success
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, hasMilk(all))

	err := h.d.AddProduct(ctx, gateway.ProductDraft{
		Name: "Milk", Category: "Dairy", Price: 40, Image: asset.FromURL("http://cdn/milk.png"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hasMilk(all) && hasMilk(dairy) }, 2*time.Second, 5*time.Millisecond)
}

func TestAddProduct_Unauthorized(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	query.Fetch(ctx, h.qc, h.q.AllProducts())

	err := h.d.AddProduct(ctx, gateway.ProductDraft{
		Name: "Milk", Category: "Dairy", Price: 40, Image: asset.FromURL("http://cdn/milk.png"),
	})
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	e, _ := h.store.Get(cache.CatalogAll())
	assert.False(t, e.Stale)
}

// Two quantity updates for one line race at the gateway. The cache ends on
// whichever the gateway applied last; the client does not serialize them.
func TestUpdateQuantity_RaceIsLastWriteWins(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	milk := h.gw.Seed("Milk", "Dairy", 40)
	require.NoError(t, h.d.AddToCart(ctx, milk, 1))

	var (
		mu    sync.Mutex
		calls int
	)
	gates := []chan struct{}{make(chan struct{}), make(chan struct{})}
	entered := make(chan struct{}, 2)
	h.gw.On("UpdateCartItemQuantity", func(context.Context) error {
		mu.Lock()
		n := calls
		calls++
		mu.Unlock()
		entered <- struct{}{}
		<-gates[n]
		return nil
	})

	errs := make(chan error, 2)
	go func() { errs <- h.d.UpdateQuantity(ctx, milk, 3) }()
	<-entered
	go func() { errs <- h.d.UpdateQuantity(ctx, milk, 5) }()
	<-entered
	assert.Equal(t, 2, h.d.Pending(UpdateQuantity))

	close(gates[1])
	require.NoError(t, <-errs)
	close(gates[0])
	require.NoError(t, <-errs)

	line, ok := h.cart(t).Line(milk).Get()
	require.True(t, ok)
	assert.Equal(t, int64(3), line.Quantity)
}

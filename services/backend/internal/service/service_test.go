package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/Skotchmaster/storefront/internal/models"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
	"github.com/Skotchmaster/storefront/services/backend/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/repo"
	"github.com/Skotchmaster/storefront/services/backend/internal/search"
)

type testEnv struct {
	repo     *repo.GormRepo
	events   *events.Memory
	catalog  *CatalogService
	cart     *CartService
	orders   *OrderService
	identity *IdentityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := pkgdb.Open(ctx, pkgdb.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate(ctx))
	ev := &events.Memory{}
	return &testEnv{
		repo:     r,
		events:   ev,
		catalog:  &CatalogService{Repo: r, Events: ev, Search: search.SQL{Store: r}},
		cart:     &CartService{Repo: r, Events: ev},
		orders:   &OrderService{Repo: r, Events: ev},
		identity: &IdentityService{Repo: r, Events: ev, JWTSecret: []byte("s"), AccessTTL: time.Hour},
	}
}

func (env *testEnv) product(t *testing.T, name, category string, price int64) int64 {
	t.Helper()
	p, err := env.catalog.AddProduct(context.Background(), ProductInput{Name: name, Category: category, Price: price, Image: "http://img/" + name})
	require.NoError(t, err)
	return p.ID
}

func TestCatalogValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ProductInput
	}{
		{name: "no name", in: ProductInput{Category: "Dairy", Image: "x"}},
		{name: "no category", in: ProductInput{Name: "Milk", Image: "x"}},
		{name: "category All", in: ProductInput{Name: "Milk", Category: "All", Image: "x"}},
		{name: "negative price", in: ProductInput{Name: "Milk", Category: "Dairy", Price: -1, Image: "x"}},
		{name: "no image", in: ProductInput{Name: "Milk", Category: "Dairy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.AddProduct(ctx, tt.in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := env.catalog.ListProductsByCategory(ctx, "")
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, env.events.Events(events.TopicProducts))
}

func TestCatalogReadsAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	milk := env.product(t, "Milk", "Dairy", 60)
	env.product(t, "Carrot", "Vegetables", 40)

	all, err := env.catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dairy, err := env.catalog.ListProductsByCategory(ctx, "Dairy")
	require.NoError(t, err)
	require.Len(t, dairy, 1)
	assert.Equal(t, "Milk", dairy[0].Name)

	found, err := env.catalog.SearchProducts(ctx, "  CAR ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Carrot", found[0].Name)

	none, err := env.catalog.SearchProducts(ctx, " ")
	require.NoError(t, err)
	assert.Empty(t, none)

	updated, err := env.catalog.UpdateProduct(ctx, milk, ProductInput{Name: "Toned milk", Category: "Dairy", Price: 65})
	require.NoError(t, err)
	assert.Equal(t, "http://img/Milk", updated.Image.DirectURL())
	assert.EqualValues(t, 65, updated.Price)

	_, err = env.catalog.UpdateProduct(ctx, 999, ProductInput{Name: "x", Category: "Dairy"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.catalog.GetProduct(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	evs := env.events.Events(events.TopicProducts)
	require.Len(t, evs, 3)
	assert.Equal(t, "product_updated", evs[2].Event["type"])
}

func TestCartSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.product(t, "A", "Food", 50)
	b := env.product(t, "B", "Food", 30)

	require.NoError(t, env.cart.AddToCart(ctx, "u1", a, 2))
	require.NoError(t, env.cart.AddToCart(ctx, "u1", b, 1))
	require.NoError(t, env.cart.AddToCart(ctx, "u2", b, 5))

	s, err := env.cart.GetCartSummary(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.EqualValues(t, 130, s.Total)
	assert.EqualValues(t, 3, s.TotalItems)
	assert.Equal(t, a, s.Items[0].Product.ID)

	require.NoError(t, env.cart.AddToCart(ctx, "u1", a, 1))
	require.NoError(t, env.cart.UpdateCartItemQuantity(ctx, "u1", b, 4))
	s, err = env.cart.GetCartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.Line(a).OrElse(api.CartItem{}).Quantity)
	assert.EqualValues(t, 270, s.Total)

	require.ErrorIs(t, env.cart.AddToCart(ctx, "u1", a, 0), ErrValidation)
	require.ErrorIs(t, env.cart.UpdateCartItemQuantity(ctx, "u1", a, 0), ErrValidation)
	require.ErrorIs(t, env.cart.AddToCart(ctx, "u1", 999, 1), ErrNotFound)
	require.ErrorIs(t, env.cart.UpdateCartItemQuantity(ctx, "u3", a, 1), ErrNotFound)

	require.NoError(t, env.cart.RemoveItemFromCart(ctx, "u1", a))
	require.NoError(t, env.cart.RemoveItemFromCart(ctx, "u1", a))
	s, err = env.cart.GetCartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, s.Items, 1)

	require.NoError(t, env.cart.ClearCart(ctx, "u1"))
	s, err = env.cart.GetCartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())

	other, err := env.cart.GetCartSummary(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 5, other.TotalItems)
}

func TestCheckoutSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.product(t, "A", "Food", 50)
	require.NoError(t, env.cart.AddToCart(ctx, "u1", a, 2))

	id, err := env.orders.Checkout(ctx, "u1", api.PaymentUPI)
	require.NoError(t, err)

	_, err = env.catalog.UpdateProduct(ctx, a, ProductInput{Name: "A2", Category: "Food", Price: 999})
	require.NoError(t, err)

	o, err := env.orders.GetOrder(ctx, "u1", false, id)
	require.NoError(t, err)
	assert.EqualValues(t, 100, o.Total)
	assert.Equal(t, api.OrderStatusPending, o.Status)
	assert.Equal(t, api.PaymentUPI, o.PaymentMethod)
	require.Len(t, o.Products, 1)
	assert.Equal(t, "A", o.Products[0].Product.Name)
	assert.EqualValues(t, 50, o.Products[0].Product.Price)

	s, err := env.cart.GetCartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())

	_, err = env.orders.GetOrder(ctx, "u2", false, id)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.orders.GetOrder(ctx, "u2", true, id)
	require.NoError(t, err)

	require.NoError(t, env.orders.UpdateOrderStatus(ctx, id, "shipped"))
	mine, err := env.orders.ListMyOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "shipped", mine[0].Status)
	require.ErrorIs(t, env.orders.UpdateOrderStatus(ctx, id, " "), ErrValidation)
	require.ErrorIs(t, env.orders.UpdateOrderStatus(ctx, 999, "x"), ErrNotFound)

	assert.Len(t, env.events.Events(events.TopicOrders), 2)
}

func TestCheckoutRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orders.Checkout(ctx, "u1", api.PaymentCOD)
	require.ErrorIs(t, err, ErrValidation)

	a := env.product(t, "A", "Food", 1)
	require.NoError(t, env.cart.AddToCart(ctx, "u1", a, 1))
	_, err = env.orders.Checkout(ctx, "u1", "CARD")
	require.ErrorIs(t, err, ErrValidation)

	big := env.product(t, "Big", "Food", math.MaxInt64/2+1)
	require.NoError(t, env.cart.AddToCart(ctx, "u1", big, 2))
	_, err = env.orders.Checkout(ctx, "u1", api.PaymentCOD)
	require.ErrorIs(t, err, ErrValidation)

	// rolled back: the cart is untouched and no order exists
	lines, err := env.repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	all, err := env.orders.ListAllOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRegisterLoginRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.identity.Register(ctx, "owner", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "admin", first.Role)

	second, err := env.identity.Register(ctx, "ann", "secret2")
	require.NoError(t, err)
	assert.Equal(t, "user", second.Role)

	_, err = env.identity.Register(ctx, "ann", "secret3")
	require.ErrorIs(t, err, ErrConflict)
	_, err = env.identity.Register(ctx, "bob", "123")
	require.ErrorIs(t, err, ErrValidation)

	res, err := env.identity.Login(ctx, "ann", "secret2")
	require.NoError(t, err)
	claims, err := tokens.AccessClaimsFromToken(res.AccessToken, []byte("s"))
	require.NoError(t, err)
	assert.Equal(t, second.ID, claims.Subject)

	_, err = env.identity.Login(ctx, "ann", "wrong!")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.identity.Login(ctx, "nobody", "secret2")
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, env.identity.AssignRole(ctx, "ann", api.RoleAdmin))
	role, err := env.identity.RoleOf(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	require.ErrorIs(t, env.identity.AssignRole(ctx, "ann", "root"), ErrValidation)
	require.ErrorIs(t, env.identity.AssignRole(ctx, "ghost", api.RoleUser), ErrNotFound)
	_, err = env.identity.RoleOf(ctx, "ghost")
	require.ErrorIs(t, err, middleware.ErrUnknownUser)

	types := []string{}
	for _, e := range env.events.Events(events.TopicUsers) {
		types = append(types, e.Event["type"].(string))
	}
	assert.Equal(t, []string{"user_registered", "user_registered", "user_logged_in", "role_assigned"}, types)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, err := env.identity.Register(ctx, "owner", "secret1")
	require.NoError(t, err)
	ann, err := env.identity.Register(ctx, "ann", "secret2")
	require.NoError(t, err)

	p, err := env.identity.GetProfile(ctx, ann.ID)
	require.NoError(t, err)
	assert.False(t, p.IsPresent())

	require.ErrorIs(t, env.identity.SaveProfile(ctx, ann.ID, api.UserProfile{Name: " "}), ErrValidation)
	require.NoError(t, env.identity.SaveProfile(ctx, ann.ID, api.UserProfile{Name: "Ann", Phone: "1"}))
	require.NoError(t, env.identity.SaveProfile(ctx, ann.ID, api.UserProfile{Name: "Ann B", Phone: "2"}))

	p, err = env.identity.GetProfile(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, api.UserProfile{Name: "Ann B", Phone: "2"}, p.OrElse(api.UserProfile{}))

	byAdmin, err := env.identity.GetUserProfile(ctx, admin.ID, true, "ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann B", byAdmin.OrElse(api.UserProfile{}).Name)

	_, err = env.identity.GetUserProfile(ctx, "someone", false, ann.ID)
	require.ErrorIs(t, err, ErrForbidden)

	own, err := env.identity.GetUserProfile(ctx, ann.ID, false, ann.ID)
	require.NoError(t, err)
	assert.True(t, own.IsPresent())

	var count int64
	require.NoError(t, env.repo.DB.Model(&models.Profile{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

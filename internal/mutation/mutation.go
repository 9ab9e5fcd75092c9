// Package mutation executes write intents against the gateway and
// invalidates the cache keys each intent may have changed.
//
// Mutations are not optimistic. The cache is untouched until the gateway
// confirms, and then only invalidated; watchers refetch on their own.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Kind string

const (
	AddToCart         Kind = "addToCart"
	UpdateQuantity    Kind = "updateQuantity"
	RemoveFromCart    Kind = "removeFromCart"
	ClearCart         Kind = "clearCart"
	Checkout          Kind = "checkout"
	AddProduct        Kind = "addProduct"
	UpdateProduct     Kind = "updateProduct"
	UpdateOrderStatus Kind = "updateOrderStatus"
	AssignRole        Kind = "assignRole"
	SaveProfile       Kind = "saveProfile"
)

var invalidation = map[Kind][]cache.Key{
	AddToCart:         {cache.Cart},
	UpdateQuantity:    {cache.Cart},
	RemoveFromCart:    {cache.Cart},
	ClearCart:         {cache.Cart},
	Checkout:          {cache.Cart, cache.Order},
	AddProduct:        {cache.Catalog},
	UpdateProduct:     {cache.Catalog},
	UpdateOrderStatus: {cache.Order},
	AssignRole:        {cache.Role},
	SaveProfile:       {cache.ProfileCaller()},
}

// Invalidates returns the keys a successful mutation of kind k marks stale.
func Invalidates(k Kind) []cache.Key {
	keys := invalidation[k]
	out := make([]cache.Key, len(keys))
	copy(out, keys)
	return out
}

var failureText = map[Kind]string{
	AddToCart:         "Failed to add to cart",
	UpdateQuantity:    "Failed to update quantity",
	RemoveFromCart:    "Failed to remove item",
	ClearCart:         "Failed to clear cart",
	Checkout:          "Failed to place order",
	AddProduct:        "Failed to save product",
	UpdateProduct:     "Failed to save product",
	UpdateOrderStatus: "Failed to update order status",
	AssignRole:        "Failed to assign role",
	SaveProfile:       "Failed to save profile",
}

// Error is a rejected mutation. Its message is meant for the user.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	text, ok := failureText[e.Kind]
	if !ok {
		text = "Request failed"
	}
	return text + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{gateway.ErrValidation}, args...)...)
}

// Dispatcher runs mutations for one session.
type Dispatcher struct {
	gw    gateway.Gateway
	store *cache.Store

	mu      sync.Mutex
	pending map[Kind]int

	log     *slog.Logger
	metrics *metrics.Client
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func WithMetrics(m *metrics.Client) Option { return func(d *Dispatcher) { d.metrics = m } }

func New(gw gateway.Gateway, store *cache.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gw:      gw,
		store:   store,
		pending: make(map[Kind]int),
		log:     logging.Discard(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Pending is the number of calls of kind k in flight. Controls bound to k
// stay disabled while it is non-zero.
func (d *Dispatcher) Pending(k Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[k]
}

func (d *Dispatcher) track(k Kind, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[k] += delta
	if d.pending[k] == 0 {
		delete(d.pending, k)
	}
}

func (d *Dispatcher) reject(k Kind, err error) error {
	d.metrics.Mutation(string(k), "rejected")
	d.log.Info("mutation_rejected", "mutation", string(k), "reason", err.Error())
	return &Error{Kind: k, Err: err}
}

// run calls the gateway once and, on success only, applies the static
// invalidation set of k.
func (d *Dispatcher) run(ctx context.Context, k Kind, call func(context.Context) error, attrs ...any) error {
	if !d.gw.Ready() {
		return d.reject(k, fmt.Errorf("%w: not connected", gateway.ErrTransport))
	}

	d.track(k, 1)
	defer d.track(k, -1)

	l := d.log.With(append([]any{"mutation", string(k)}, attrs...)...)

	start := time.Now()
	if err := call(ctx); err != nil {
		d.metrics.Mutation(string(k), "error")
		l.Warn("mutation_error", "kind", gateway.Kind(err), "error", err)
		return &Error{Kind: k, Err: err}
	}

	matched := d.store.Invalidate(invalidation[k]...)
	d.metrics.Mutation(string(k), "ok")
	l.Info("mutation_ok", "invalidated", len(matched), "latency_ms", time.Since(start).Milliseconds())
	return nil
}

func (d *Dispatcher) AddToCart(ctx context.Context, productID, quantity int64) error {
	if quantity < 1 {
		return d.reject(AddToCart, invalid("quantity must be at least 1"))
	}
	return d.run(ctx, AddToCart, func(ctx context.Context) error {
		return d.gw.AddToCart(ctx, productID, quantity)
	}, "product_id", productID, "quantity", quantity)
}

// UpdateQuantity sets the quantity of a cart line. Use RemoveFromCart to
// delete a line; zero is refused.
func (d *Dispatcher) UpdateQuantity(ctx context.Context, productID, quantity int64) error {
	if quantity < 1 {
		return d.reject(UpdateQuantity, invalid("quantity must be at least 1"))
	}
	return d.run(ctx, UpdateQuantity, func(ctx context.Context) error {
		return d.gw.UpdateCartItemQuantity(ctx, productID, quantity)
	}, "product_id", productID, "quantity", quantity)
}

func (d *Dispatcher) RemoveFromCart(ctx context.Context, productID int64) error {
	return d.run(ctx, RemoveFromCart, func(ctx context.Context) error {
		return d.gw.RemoveItemFromCart(ctx, productID)
	}, "product_id", productID)
}

func (d *Dispatcher) ClearCart(ctx context.Context) error {
	return d.run(ctx, ClearCart, d.gw.ClearCart)
}

// Checkout places an order for the current cart and returns its id. Moving
// to the confirmation view is up to the caller.
func (d *Dispatcher) Checkout(ctx context.Context, method models.PaymentMethod) (int64, error) {
	if !method.Valid() {
		return 0, d.reject(Checkout, invalid("unknown payment method %q", method))
	}
	var id int64
	err := d.run(ctx, Checkout, func(ctx context.Context) error {
		var err error
		id, err = d.gw.Checkout(ctx, method)
		return err
	}, "payment_method", string(method))
	if err != nil {
		return 0, err
	}
	return id, nil
}

func validateDraft(dr gateway.ProductDraft, requireImage bool) error {
	switch {
	case strings.TrimSpace(dr.Name) == "":
		return invalid("product name is required")
	case strings.TrimSpace(dr.Category) == "":
		return invalid("product category is required")
	case dr.Category == models.CategoryAll:
		return invalid("%q is not a product category", models.CategoryAll)
	case dr.Price < 0:
		return invalid("price must not be negative")
	case requireImage && dr.Image.IsZero():
		return invalid("image is required")
	}
	return nil
}

func (d *Dispatcher) AddProduct(ctx context.Context, dr gateway.ProductDraft) error {
	if err := validateDraft(dr, true); err != nil {
		return d.reject(AddProduct, err)
	}
	return d.run(ctx, AddProduct, func(ctx context.Context) error {
		return d.gw.AddProduct(ctx, dr)
	}, "name", dr.Name, "category", dr.Category)
}

// UpdateProduct keeps the stored image when dr.Image is zero.
func (d *Dispatcher) UpdateProduct(ctx context.Context, id int64, dr gateway.ProductDraft) error {
	if err := validateDraft(dr, false); err != nil {
		return d.reject(UpdateProduct, err)
	}
	return d.run(ctx, UpdateProduct, func(ctx context.Context) error {
		return d.gw.UpdateProduct(ctx, id, dr)
	}, "product_id", id)
}

func (d *Dispatcher) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return d.reject(UpdateOrderStatus, invalid("status is required"))
	}
	return d.run(ctx, UpdateOrderStatus, func(ctx context.Context) error {
		return d.gw.UpdateOrderStatus(ctx, id, status)
	}, "order_id", id, "status", status)
}

func (d *Dispatcher) AssignRole(ctx context.Context, user string, role models.UserRole) error {
	switch {
	case strings.TrimSpace(user) == "":
		return d.reject(AssignRole, invalid("user is required"))
	case !role.Valid():
		return d.reject(AssignRole, invalid("unknown role %q", role))
	}
	return d.run(ctx, AssignRole, func(ctx context.Context) error {
		return d.gw.AssignRole(ctx, user, role)
	}, "user", user, "role", string(role))
}

func (d *Dispatcher) SaveProfile(ctx context.Context, p models.UserProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return d.reject(SaveProfile, invalid("name is required"))
	}
	return d.run(ctx, SaveProfile, func(ctx context.Context) error {
		return d.gw.SaveCallerProfile(ctx, p)
	})
}

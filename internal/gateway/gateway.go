// Package gateway defines the remote commerce service the client state layer
// talks to, its error taxonomy and an HTTP+JSON client for it.
package gateway

import (
	"context"
	"errors"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	// ErrTransport: the gateway could not be reached or answered garbage.
	ErrTransport = errors.New("gateway unreachable")
	// ErrUnauthorized: the caller lacks the role the operation requires.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotFound: the identifier is unknown or not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation: an argument was rejected.
	ErrValidation = errors.New("invalid argument")
)

// ProductDraft carries the writable fields of a product. On update a zero
// Image keeps the stored one.
type ProductDraft struct {
	Name     string
	Category string
	Price    models.Money
	Image    asset.Ref
}

type Catalog interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	// ListProductsByCategory requires a non-empty category.
	ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Option[models.Product], error)
	AddProduct(ctx context.Context, d ProductDraft) error
	UpdateProduct(ctx context.Context, id int64, d ProductDraft) error
}

type Cart interface {
	GetCartSummary(ctx context.Context) (models.CartSummary, error)
	AddToCart(ctx context.Context, productID, quantity int64) error
	UpdateCartItemQuantity(ctx context.Context, productID, quantity int64) error
	RemoveItemFromCart(ctx context.Context, productID int64) error
	ClearCart(ctx context.Context) error
	Checkout(ctx context.Context, method models.PaymentMethod) (int64, error)
}

type Orders interface {
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	ListMyOrders(ctx context.Context) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) error
}

type Identity interface {
	GetCallerRole(ctx context.Context) (models.UserRole, error)
	IsCallerAdmin(ctx context.Context) (bool, error)
	AssignRole(ctx context.Context, user string, role models.UserRole) error
	GetCallerProfile(ctx context.Context) (models.Option[models.UserProfile], error)
	SaveCallerProfile(ctx context.Context, p models.UserProfile) error
	GetUserProfile(ctx context.Context, user string) (models.Option[models.UserProfile], error)
}

// Gateway is the full remote contract. Caller identity travels with the
// connection and is opaque here.
type Gateway interface {
	Catalog
	Cart
	Orders
	Identity

	// Ready reports whether the connection is established. Queries stay
	// disabled until it is.
	Ready() bool
}

// Kind classifies err into the taxonomy, or returns "" for unknown errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return ""
	}
}

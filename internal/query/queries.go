package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// Queries builds the options of every read the storefront performs. A query
// is enabled only once the gateway is ready and its parameters are usable.
type Queries struct {
	gw  gateway.Gateway
	log *slog.Logger
}

func NewQueries(gw gateway.Gateway, log *slog.Logger) *Queries {
	if log == nil {
		log = logging.Discard()
	}
	return &Queries{gw: gw, log: log}
}

func (q *Queries) AllProducts() Options[[]models.Product] {
	return Options[[]models.Product]{
		Key:     cache.CatalogAll(),
		Fetch:   q.gw.ListProducts,
		Enabled: q.gw.Ready(),
		Default: []models.Product{},
	}
}

// Category routes the All selector to the all-products key. An empty
// category disables the query so the gateway never sees an empty filter.
func (q *Queries) Category(category string) Options[[]models.Product] {
	if category == models.CategoryAll {
		return q.AllProducts()
	}
	return Options[[]models.Product]{
		Key: cache.CatalogByCategory(category),
		Fetch: func(ctx context.Context) ([]models.Product, error) {
			return q.gw.ListProductsByCategory(ctx, category)
		},
		Enabled: q.gw.Ready() && category != "",
		Default: []models.Product{},
	}
}

func (q *Queries) Search(term string) Options[[]models.Product] {
	term = strings.TrimSpace(term)
	return Options[[]models.Product]{
		Key: cache.CatalogSearch(term),
		Fetch: func(ctx context.Context) ([]models.Product, error) {
			return q.gw.SearchProducts(ctx, term)
		},
		Enabled: q.gw.Ready() && term != "",
		Default: []models.Product{},
	}
}

func (q *Queries) Product(id int64) Options[models.Option[models.Product]] {
	return Options[models.Option[models.Product]]{
		Key: cache.CatalogByID(id),
		Fetch: func(ctx context.Context) (models.Option[models.Product], error) {
			return q.gw.GetProduct(ctx, id)
		},
		Enabled: q.gw.Ready() && id > 0,
		Default: models.None[models.Product](),
	}
}

// CartSummary verifies the aggregate the gateway computed; a mismatch is
// logged, the summary is still shown as the gateway sent it.
func (q *Queries) CartSummary() Options[models.CartSummary] {
	return Options[models.CartSummary]{
		Key: cache.CartSummary(),
		Fetch: func(ctx context.Context) (models.CartSummary, error) {
			s, err := q.gw.GetCartSummary(ctx)
			if err != nil {
				return s, err
			}
			if verr := s.Validate(); verr != nil {
				q.log.Warn("cart_summary_inconsistent", "error", verr)
			}
			return s, nil
		},
		Enabled: q.gw.Ready(),
		Default: models.CartSummary{Items: []models.CartItem{}},
	}
}

func (q *Queries) Order(id int64) Options[models.Order] {
	return Options[models.Order]{
		Key: cache.OrderByID(id),
		Fetch: func(ctx context.Context) (models.Order, error) {
			o, err := q.gw.GetOrder(ctx, id)
			if err != nil {
				return o, fmt.Errorf("order %d: %w", id, err)
			}
			return o, nil
		},
		Enabled: q.gw.Ready() && id > 0,
	}
}

func (q *Queries) MyOrders() Options[[]models.Order] {
	return Options[[]models.Order]{
		Key:     cache.OrdersMine(),
		Fetch:   q.gw.ListMyOrders,
		Enabled: q.gw.Ready(),
		Default: []models.Order{},
	}
}

func (q *Queries) AllOrders() Options[[]models.Order] {
	return Options[[]models.Order]{
		Key:     cache.OrdersAll(),
		Fetch:   q.gw.ListAllOrders,
		Enabled: q.gw.Ready(),
		Default: []models.Order{},
	}
}

func (q *Queries) CallerRole() Options[models.UserRole] {
	return Options[models.UserRole]{
		Key:     cache.RoleCaller(),
		Fetch:   q.gw.GetCallerRole,
		Enabled: q.gw.Ready(),
		Default: models.RoleGuest,
	}
}

func (q *Queries) IsCallerAdmin() Options[bool] {
	return Options[bool]{
		Key:     cache.RoleIsAdmin(),
		Fetch:   q.gw.IsCallerAdmin,
		Enabled: q.gw.Ready(),
	}
}

func (q *Queries) CallerProfile() Options[models.Option[models.UserProfile]] {
	return Options[models.Option[models.UserProfile]]{
		Key:     cache.ProfileCaller(),
		Fetch:   q.gw.GetCallerProfile,
		Enabled: q.gw.Ready(),
		Default: models.None[models.UserProfile](),
	}
}

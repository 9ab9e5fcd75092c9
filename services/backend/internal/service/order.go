package service

import (
	"context"
	"fmt"
	"strings"

	api "github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
	"github.com/Skotchmaster/storefront/services/backend/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/repo"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

// Checkout turns the caller's cart into an order in one transaction. Order
// items copy the product fields so later catalog edits leave them intact.
func (s *OrderService) Checkout(ctx context.Context, userID string, method api.PaymentMethod) (int64, error) {
	if !method.Valid() {
		return 0, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}

	var order models.Order
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		lines, err := tx.LockCart(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("%w: cart is empty", ErrValidation)
		}

		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		products, err := tx.ProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		var total api.Money
		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, ok := byID[l.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d no longer exists", ErrNotFound, l.ProductID)
			}
			sub, err := api.Money(p.Price).Times(l.Quantity)
			if err != nil {
				return fmt.Errorf("%w: line %d: %v", ErrValidation, p.ID, err)
			}
			if total, err = total.Add(sub); err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			items = append(items, models.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Category:  p.Category,
				Price:     p.Price,
				Image:     p.Image,
				Quantity:  l.Quantity,
			})
		}

		order = models.Order{
			UserID:        userID,
			Status:        api.OrderStatusPending,
			Total:         int64(total),
			PaymentMethod: string(method),
			Items:         items,
		}
		if err := tx.CreateOrder(ctx, &order); err != nil {
			return err
		}
		return tx.ClearCart(ctx, userID)
	})
	if err != nil {
		return 0, err
	}

	publish(ctx, s.Events, events.TopicOrders, fmt.Sprint(order.ID), events.New("order_placed",
		"orderID", order.ID, "userID", userID, "total", order.Total, "paymentMethod", order.PaymentMethod))
	return order.ID, nil
}

// GetOrder hides other users' orders from non-admins as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID string, admin bool, id int64) (api.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return api.Order{}, notFound(err, fmt.Errorf("%w: order %d", ErrNotFound, id))
	}
	if !admin && o.UserID != userID {
		return api.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return o.API(), nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]api.Order, error) {
	return s.list(ctx, userID)
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]api.Order, error) {
	return s.list(ctx, "")
}

func (s *OrderService) list(ctx context.Context, userID string) ([]api.Order, error) {
	rows, err := s.Repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]api.Order, 0, len(rows))
	for _, o := range rows {
		out = append(out, o.API())
	}
	return out, nil
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("%w: status is required", ErrValidation)
	}
	if err := s.Repo.SetOrderStatus(ctx, id, status); err != nil {
		return notFound(err, fmt.Errorf("%w: order %d", ErrNotFound, id))
	}
	publish(ctx, s.Events, events.TopicOrders, fmt.Sprint(id), events.New("order_status_changed",
		"orderID", id, "status", status))
	return nil
}

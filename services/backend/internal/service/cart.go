package service

import (
	"context"
	"fmt"

	api "github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
	"github.com/Skotchmaster/storefront/services/backend/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/repo"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

// summarize builds the aggregate from lines. Totals use checked arithmetic.
func summarize(lines []models.CartItem) (api.CartSummary, error) {
	s := api.CartSummary{Items: make([]api.CartItem, 0, len(lines))}
	for _, l := range lines {
		item := api.CartItem{Product: l.Product.API(), Quantity: l.Quantity}
		sub, err := item.Subtotal()
		if err != nil {
			return api.CartSummary{}, fmt.Errorf("cart line %d: %w", l.ProductID, err)
		}
		if s.Total, err = s.Total.Add(sub); err != nil {
			return api.CartSummary{}, err
		}
		s.TotalItems += l.Quantity
		s.Items = append(s.Items, item)
	}
	return s, nil
}

func (s *CartService) GetCartSummary(ctx context.Context, userID string) (api.CartSummary, error) {
	lines, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return api.CartSummary{}, err
	}
	return summarize(lines)
}

func (s *CartService) AddToCart(ctx context.Context, userID string, productID, quantity int64) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be more than zero", ErrValidation)
	}
	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		return notFound(err, fmt.Errorf("%w: product %d", ErrNotFound, productID))
	}
	if err := s.Repo.AddToCart(ctx, userID, productID, quantity); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicCart, userID, events.New("cart_item_added",
		"userID", userID, "productID", productID, "quantity", quantity))
	return nil
}

func (s *CartService) UpdateCartItemQuantity(ctx context.Context, userID string, productID, quantity int64) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be more than zero", ErrValidation)
	}
	if err := s.Repo.SetCartQuantity(ctx, userID, productID, quantity); err != nil {
		return notFound(err, fmt.Errorf("%w: product %d not in cart", ErrNotFound, productID))
	}
	publish(ctx, s.Events, events.TopicCart, userID, events.New("cart_item_updated",
		"userID", userID, "productID", productID, "quantity", quantity))
	return nil
}

func (s *CartService) RemoveItemFromCart(ctx context.Context, userID string, productID int64) error {
	if err := s.Repo.RemoveFromCart(ctx, userID, productID); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicCart, userID, events.New("cart_item_removed",
		"userID", userID, "productID", productID))
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.Repo.ClearCart(ctx, userID); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicCart, userID, events.New("cart_cleared", "userID", userID))
	return nil
}

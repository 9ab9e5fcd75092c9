package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/view"
)

// failed turns a page that could not load into a non-zero exit. The page
// has already printed the reason.
func failed[T any](r query.Result[T]) error {
	if r.Status == query.Error && !r.HasData {
		return &shownError{r.Err}
	}
	return nil
}

func (a *app) showCart(ctx context.Context, s *session.Session) error {
	r := query.Fetch(ctx, s.Client, s.Queries.CartSummary())
	view.Cart(a.out, r, false)
	return failed(r)
}

func cartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit your cart",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(a.showCart)

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			qty := int64(1)
			if len(args) == 2 {
				if qty, err = strconv.ParseInt(args[1], 10, 64); err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
			}
			return a.run(func(ctx context.Context, s *session.Session) error {
				if err := a.toast(s.Mutations.AddToCart(ctx, id, qty), "Added to cart!"); err != nil {
					return err
				}
				return a.showCart(ctx, s)
			})(c, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Change the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return a.run(func(ctx context.Context, s *session.Session) error {
				if err := a.toast(s.Mutations.UpdateQuantity(ctx, id, qty), "Cart updated"); err != nil {
					return err
				}
				return a.showCart(ctx, s)
			})(c, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *session.Session) error {
				if err := a.toast(s.Mutations.RemoveFromCart(ctx, id), "Item removed from cart"); err != nil {
					return err
				}
				return a.showCart(ctx, s)
			})(c, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session.Session) error {
			return a.toast(s.Mutations.ClearCart(ctx), "Cart cleared")
		}),
	})
	return cmd
}

func checkoutCmd(a *app) *cobra.Command {
	var payment string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for everything in the cart",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&payment, "payment", "p", string(models.PaymentCOD), "payment method: COD or UPI")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		method := models.PaymentMethod(strings.ToUpper(payment))
		if !method.Valid() {
			return fmt.Errorf("unknown payment method %q", payment)
		}
		return a.run(func(ctx context.Context, s *session.Session) error {
			cart := query.Fetch(ctx, s.Client, s.Queries.CartSummary())
			if err := view.Checkout(a.out, cart, method, true); errors.Is(err, view.ErrRedirectToCart) {
				view.Cart(a.out, cart, false)
				return nil
			}
			if err := failed(cart); err != nil {
				return err
			}

			id, err := s.Mutations.Checkout(ctx, method)
			if err := a.toast(err, "Order placed successfully!"); err != nil {
				return err
			}
			r := query.Fetch(ctx, s.Client, s.Queries.Order(id))
			view.OrderConfirmation(a.out, r)
			return failed(r)
		})(c, args)
	}
	return cmd
}

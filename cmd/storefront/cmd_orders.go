package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/view"
)

func ordersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session.Session) error {
			r := query.Fetch(ctx, s.Client, s.Queries.MyOrders())
			view.Orders(a.out, "My Orders", r)
			return failed(r)
		}),
	}
}

func orderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, s *session.Session) error {
				r := query.Fetch(ctx, s.Client, s.Queries.Order(id))
				view.OrderConfirmation(a.out, r)
				return failed(r)
			})(c, args)
		},
	}
}

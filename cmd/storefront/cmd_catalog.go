package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/view"
)

func productsCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products, optionally by category",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&category, "category", "c", models.CategoryAll,
		"one of "+strings.Join(models.BrowseCategories(), ", "))
	cmd.RunE = a.run(func(ctx context.Context, s *session.Session) error {
		view.Products(a.out, category, query.Fetch(ctx, s.Client, s.Queries.Category(category)))
		return nil
	})
	return cmd
}

func searchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search products by name",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		return a.run(func(ctx context.Context, s *session.Session) error {
			view.Products(a.out, "Search: "+term, query.Fetch(ctx, s.Client, s.Queries.Search(term)))
			return nil
		})(c, args)
	}
	return cmd
}

func productCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		id, err := parseID(args[0], "product id")
		if err != nil {
			return err
		}
		return a.run(func(ctx context.Context, s *session.Session) error {
			view.Product(a.out, query.Fetch(ctx, s.Client, s.Queries.Product(id)))
			return nil
		})(c, args)
	}
	return cmd
}

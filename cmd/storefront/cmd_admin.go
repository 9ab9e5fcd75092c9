package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/view"
)

var errAccessDenied = errors.New("access denied")

// admin runs fn only once the gate grants admin access. Denied and
// unresolved decisions render their own screen and exit non-zero.
func (a *app) admin(fn func(ctx context.Context, s *session.Session) error) func(*cobra.Command, []string) error {
	return a.run(func(ctx context.Context, s *session.Session) error {
		d := s.Gate.ResolveAdmin(ctx)
		var err error
		view.Restricted(a.out, d, func(io.Writer) { err = fn(ctx, s) })
		switch {
		case d.ShowDenial():
			return &shownError{errAccessDenied}
		case !d.CanRender():
			if d.Err != nil {
				return &shownError{d.Err}
			}
			return &shownError{errors.New("permissions unresolved")}
		}
		return err
	})
}

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Store administration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "products",
			Short: "List every product",
			Args:  cobra.NoArgs,
			RunE: a.admin(func(ctx context.Context, s *session.Session) error {
				r := query.Fetch(ctx, s.Client, s.Queries.AllProducts())
				view.Products(a.out, models.CategoryAll, r)
				return failed(r)
			}),
		},
		addProductCmd(a),
		updateProductCmd(a),
		&cobra.Command{
			Use:   "orders",
			Short: "List every order",
			Args:  cobra.NoArgs,
			RunE: a.admin(func(ctx context.Context, s *session.Session) error {
				r := query.Fetch(ctx, s.Client, s.Queries.AllOrders())
				view.Orders(a.out, "All Orders", r)
				return failed(r)
			}),
		},
		orderStatusCmd(a),
		assignRoleCmd(a),
	)
	return cmd
}

type productFlags struct {
	name     string
	category string
	price    int64
	image    string
}

func (f *productFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "product name")
	cmd.Flags().StringVar(&f.category, "category", "", "product category")
	cmd.Flags().Int64Var(&f.price, "price", 0, "price in rupees")
	cmd.Flags().StringVar(&f.image, "image", "", "path of the product image")
}

// imageRef loads the image file and reports upload progress on a.out.
func (a *app) imageRef(path string) (asset.Ref, error) {
	if path == "" {
		return asset.Ref{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return asset.Ref{}, fmt.Errorf("read image: %w", err)
	}
	return asset.FromBytes(b).WithUploadProgress(func(pct int) { view.Progress(a.out, pct) }), nil
}

func addProductCmd(a *app) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "add-product",
		Short: "Add a product to the catalog",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd)
	cmd.RunE = a.admin(func(ctx context.Context, s *session.Session) error {
		img, err := a.imageRef(f.image)
		if err != nil {
			return err
		}
		err = s.Mutations.AddProduct(ctx, gateway.ProductDraft{
			Name:     f.name,
			Category: f.category,
			Price:    models.Money(f.price),
			Image:    img,
		})
		return a.toast(err, "Product added successfully!")
	})
	return cmd
}

func updateProductCmd(a *app) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "update-product <id>",
		Short: "Edit a product; unset flags keep the current values",
		Args:  cobra.ExactArgs(1),
	}
	f.bind(cmd)
	cmd.RunE = func(c *cobra.Command, args []string) error {
		id, err := parseID(args[0], "product id")
		if err != nil {
			return err
		}
		return a.admin(func(ctx context.Context, s *session.Session) error {
			cur := query.Fetch(ctx, s.Client, s.Queries.Product(id))
			if err := failed(cur); err != nil {
				view.Product(a.out, cur)
				return err
			}
			p, ok := cur.Data.Get()
			if !ok {
				return fmt.Errorf("product %d not found", id)
			}
			draft := gateway.ProductDraft{Name: p.Name, Category: p.Category, Price: p.Price}
			flags := c.Flags()
			if flags.Changed("name") {
				draft.Name = f.name
			}
			if flags.Changed("category") {
				draft.Category = f.category
			}
			if flags.Changed("price") {
				draft.Price = models.Money(f.price)
			}
			if draft.Image, err = a.imageRef(f.image); err != nil {
				return err
			}
			return a.toast(s.Mutations.UpdateProduct(ctx, id, draft), "Product updated successfully!")
		})(c, args)
	}
	return cmd
}

func orderStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order-status <id> <status>",
		Short: "Set the status of an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return a.admin(func(ctx context.Context, s *session.Session) error {
				return a.toast(s.Mutations.UpdateOrderStatus(ctx, id, args[1]), "Order status updated")
			})(c, args)
		},
	}
}

func assignRoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-role <user> <role>",
		Short: "Give a user the admin, user or guest role",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return a.admin(func(ctx context.Context, s *session.Session) error {
				err := s.Mutations.AssignRole(ctx, args[0], models.UserRole(args[1]))
				return a.toast(err, fmt.Sprintf("%s is now %s", args[0], args[1]))
			})(c, args)
		},
	}
}

package service

import (
	"context"
	"fmt"
	"strings"

	api "github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
	"github.com/Skotchmaster/storefront/services/backend/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/repo"
	"github.com/Skotchmaster/storefront/services/backend/internal/search"
)

type CatalogService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
	Search search.Index
}

type ProductInput struct {
	Name     string
	Category string
	Price    int64
	Image    string
}

func (in *ProductInput) validate(requireImage bool) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case in.Category == "":
		return fmt.Errorf("%w: category is required", ErrValidation)
	case in.Category == api.CategoryAll:
		return fmt.Errorf("%w: %q is not a product category", ErrValidation, api.CategoryAll)
	case in.Price < 0:
		return fmt.Errorf("%w: price must be >= 0", ErrValidation)
	case requireImage && in.Image == "":
		return fmt.Errorf("%w: image is required", ErrValidation)
	}
	return nil
}

func apiProducts(rows []models.Product) []api.Product {
	out := make([]api.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.API())
	}
	return out
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]api.Product, error) {
	rows, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return apiProducts(rows), nil
}

func (s *CatalogService) ListProductsByCategory(ctx context.Context, category string) ([]api.Product, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrValidation)
	}
	rows, err := s.Repo.ListProductsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return apiProducts(rows), nil
}

func (s *CatalogService) SearchProducts(ctx context.Context, term string) ([]api.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []api.Product{}, nil
	}
	rows, err := s.Search.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	return apiProducts(rows), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (api.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return api.Product{}, notFound(err, fmt.Errorf("%w: product %d", ErrNotFound, id))
	}
	return p.API(), nil
}

func (s *CatalogService) AddProduct(ctx context.Context, in ProductInput) (api.Product, error) {
	if err := in.validate(true); err != nil {
		return api.Product{}, err
	}
	p := &models.Product{Name: in.Name, Category: in.Category, Price: in.Price, Image: in.Image}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return api.Product{}, err
	}
	s.afterWrite(ctx, "product_created", *p)
	return p.API(), nil
}

// UpdateProduct replaces the product's fields. An empty image keeps the
// current one.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (api.Product, error) {
	if err := in.validate(false); err != nil {
		return api.Product{}, err
	}
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return api.Product{}, notFound(err, fmt.Errorf("%w: product %d", ErrNotFound, id))
	}
	p.Name, p.Category, p.Price = in.Name, in.Category, in.Price
	if in.Image != "" {
		p.Image = in.Image
	}
	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		return api.Product{}, err
	}
	s.afterWrite(ctx, "product_updated", *p)
	return p.API(), nil
}

func (s *CatalogService) afterWrite(ctx context.Context, typ string, p models.Product) {
	if err := s.Search.Index(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_error", "product_id", p.ID, "error", err)
	}
	publish(ctx, s.Events, events.TopicProducts, fmt.Sprint(p.ID), events.New(typ,
		"productID", p.ID, "name", p.Name, "category", p.Category, "price", p.Price))
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/backend/internal/models"
)

// Index keeps product search in sync with the catalog.
type Index interface {
	Index(ctx context.Context, p models.Product) error
	Search(ctx context.Context, term string) ([]models.Product, error)
}

// Store is the relational side of search.
type Store interface {
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// SQL searches the products table directly.
type SQL struct {
	Store Store
}

func (s SQL) Index(context.Context, models.Product) error { return nil }

func (s SQL) Search(ctx context.Context, term string) ([]models.Product, error) {
	return s.Store.SearchProducts(ctx, term)
}

type ElasticConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

// Elastic ranks with Elasticsearch and loads rows from Store. If the
// cluster fails a query, the SQL search answers instead.
type Elastic struct {
	es    *elasticsearch.Client
	index string
	store Store
	log   *slog.Logger
}

func NewElastic(cfg ElasticConfig, store Store, log *slog.Logger) (*Elastic, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}
	index := cfg.Index
	if index == "" {
		index = "products"
	}
	return &Elastic{es: client, index: index, store: store, log: log}, nil
}

// Ping checks the cluster answers.
func (e *Elastic) Ping(ctx context.Context) error {
	res, err := e.es.Info(e.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: info: %s", res.Status())
	}
	return nil
}

type document struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (e *Elastic) Index(ctx context.Context, p models.Product) error {
	body, err := json.Marshal(document{ID: p.ID, Name: p.Name, Category: p.Category})
	if err != nil {
		return err
	}
	res, err := e.es.Index(e.index, bytes.NewReader(body),
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(strconv.FormatInt(p.ID, 10)),
		e.es.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: index %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch: index %d: %s: %s", p.ID, res.Status(), msg)
	}
	return nil
}

func (e *Elastic) Search(ctx context.Context, term string) ([]models.Product, error) {
	ids, err := e.query(ctx, term)
	if err != nil {
		e.log.Warn("search_fallback", "reason", "elasticsearch query failed", "error", err)
		return e.store.SearchProducts(ctx, term)
	}
	rows, err := e.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Product, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		// hits for rows deleted since indexing are skipped
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (e *Elastic) query(ctx context.Context, term string) ([]int64, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     term,
				"fields":    []string{"name^2", "category"},
				"fuzziness": "AUTO",
			},
		},
		"size": 100,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}
	return ids, nil
}

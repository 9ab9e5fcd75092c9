package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/services/backend/internal/models"
)

type fakeStore struct {
	rows    map[int64]models.Product
	sqlHits int
}

func (f *fakeStore) SearchProducts(_ context.Context, term string) ([]models.Product, error) {
	f.sqlHits++
	var out []models.Product
	for _, p := range f.rows {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCluster struct {
	mu        sync.Mutex
	indexed   map[string]document
	failQuery bool
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case strings.HasPrefix(r.URL.Path, "/products/_doc/"):
		var d document
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &d)
		c.indexed[strings.TrimPrefix(r.URL.Path, "/products/_doc/")] = d
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.URL.Path == "/products/_search":
		if c.failQuery {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":2}},{"_source":{"id":99}},{"_source":{"id":1}}]}}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newElastic(t *testing.T) (*Elastic, *fakeCluster, *fakeStore) {
	t.Helper()
	cluster := &fakeCluster{indexed: map[string]document{}}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	store := &fakeStore{rows: map[int64]models.Product{
		1: {ID: 1, Name: "Milk", Category: "Dairy"},
		2: {ID: 2, Name: "Oat milk", Category: "Dairy"},
	}}
	e, err := NewElastic(ElasticConfig{URL: srv.URL}, store, nil)
	require.NoError(t, err)
	return e, cluster, store
}

func TestElasticIndex(t *testing.T) {
	e, cluster, _ := newElastic(t)
	require.NoError(t, e.Index(context.Background(), models.Product{ID: 7, Name: "Paneer", Category: "Dairy"}))

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Equal(t, document{ID: 7, Name: "Paneer", Category: "Dairy"}, cluster.indexed["7"])
}

func TestElasticSearchKeepsHitOrder(t *testing.T) {
	e, _, store := newElastic(t)
	got, err := e.Search(context.Background(), "milk")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 2, got[0].ID)
	assert.EqualValues(t, 1, got[1].ID)
	assert.Zero(t, store.sqlHits)
}

func TestElasticSearchFallsBack(t *testing.T) {
	e, cluster, store := newElastic(t)
	cluster.mu.Lock()
	cluster.failQuery = true
	cluster.mu.Unlock()

	got, err := e.Search(context.Background(), "oat")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Oat milk", got[0].Name)
	assert.Equal(t, 1, store.sqlHits)
}

func TestSQL(t *testing.T) {
	store := &fakeStore{rows: map[int64]models.Product{1: {ID: 1, Name: "Milk"}}}
	s := SQL{Store: store}
	require.NoError(t, s.Index(context.Background(), models.Product{}))
	got, err := s.Search(context.Background(), "mi")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

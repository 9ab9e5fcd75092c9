package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_NilIsNoop(t *testing.T) {
	var m *Client
	m.Fetch("cart", "ok")
	m.Dedup("cart")
	m.Discarded("cart")
	m.Invalidated("cart")
	m.Mutation("checkout", "ok")
}

func TestClient_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClient(reg)

	m.Fetch("catalog", "ok")
	m.Fetch("catalog", "ok")
	m.Mutation("addToCart", "error")

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		for _, mt := range f.GetMetric() {
			got[f.GetName()] += mt.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, got["storefront_query_fetch_total"])
	assert.Equal(t, 1.0, got["storefront_mutation_total"])
}

func TestHTTP_MiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/catalog/products/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/products/7", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `path="/catalog/products/:id"`))
}

package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer() *echo.Echo {
	e := echo.New()
	e.Use(Middleware(Config{}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/cart", ok)
	e.POST("/cart/items", ok)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPassesWithoutSessionCookie(t *testing.T) {
	e := newServer()

	rec := serve(e, httptest.NewRequest(http.MethodPost, "/cart/items", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc")
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "abc"})
	assert.Equal(t, http.StatusNoContent, serve(e, req).Code)
}

func TestCookieSessionNeedsToken(t *testing.T) {
	e := newServer()

	get := httptest.NewRequest(http.MethodGet, "/cart", nil)
	get.AddCookie(&http.Cookie{Name: "accessToken", Value: "abc"})
	rec := serve(e, get)
	require.Equal(t, http.StatusNoContent, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, token)

	tests := []struct {
		name   string
		origin string
		header string
		want   int
	}{
		{"valid", "http://example.com", token, http.StatusNoContent},
		{"missing token", "http://example.com", "", http.StatusForbidden},
		{"wrong token", "http://example.com", token + "x", http.StatusForbidden},
		{"cross origin", "http://evil.test", token, http.StatusForbidden},
		{"no origin", "", token, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
			req.AddCookie(&http.Cookie{Name: "accessToken", Value: "abc"})
			req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			assert.Equal(t, tt.want, serve(e, req).Code)
		})
	}
}

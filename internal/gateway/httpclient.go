package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// HTTPClient talks to the reference backend over HTTP+JSON.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
	ready      atomic.Bool
}

type HTTPOption func(*HTTPClient)

func WithToken(token string) HTTPOption { return func(c *HTTPClient) { c.token = token } }

func WithHTTPClient(h *http.Client) HTTPOption { return func(c *HTTPClient) { c.httpClient = h } }

func WithLogger(l *slog.Logger) HTTPOption { return func(c *HTTPClient) { c.log = l } }

func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ Gateway = (*HTTPClient)(nil)

// Connect probes the backend readiness endpoint and marks the client ready.
func (c *HTTPClient) Connect(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/health/ready", nil, nil); err != nil {
		c.ready.Store(false)
		return err
	}
	c.ready.Store(true)
	return nil
}

func (c *HTTPClient) Ready() bool { return c.ready.Load() }

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func statusError(code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrTransport, code, msg)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *HTTPClient) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		c.log.Warn("gateway_request_error", "method", req.Method, "path", req.URL.Path, "error", err)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	c.log.Debug("gateway_request", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
		return statusError(resp.StatusCode, eb.Message)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

// optional treats 204 as absent.
func optional[T any](c *HTTPClient, ctx context.Context, path string) (models.Option[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return models.None[T](), fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	var v *T
	if err := c.send(req, &v); err != nil {
		return models.None[T](), err
	}
	if v == nil {
		return models.None[T](), nil
	}
	return models.Some(*v), nil
}

// Catalog

func (c *HTTPClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := c.do(ctx, http.MethodGet, "/catalog/products", nil, &out)
	return out, err
}

func (c *HTTPClient) ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	var out []models.Product
	err := c.do(ctx, http.MethodGet, "/catalog/products?category="+url.QueryEscape(category), nil, &out)
	return out, err
}

func (c *HTTPClient) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	var out []models.Product
	err := c.do(ctx, http.MethodGet, "/catalog/products/search?q="+url.QueryEscape(term), nil, &out)
	return out, err
}

func (c *HTTPClient) GetProduct(ctx context.Context, id int64) (models.Option[models.Product], error) {
	var p models.Product
	err := c.do(ctx, http.MethodGet, "/catalog/products/"+strconv.FormatInt(id, 10), nil, &p)
	if errors.Is(err, ErrNotFound) {
		return models.None[models.Product](), nil
	}
	if err != nil {
		return models.None[models.Product](), err
	}
	return models.Some(p), nil
}

type productBody struct {
	Name     string       `json:"name"`
	Category string       `json:"category"`
	Price    models.Money `json:"price"`
	Image    string       `json:"image,omitempty"`
}

func (c *HTTPClient) productBody(ctx context.Context, d ProductDraft) (productBody, error) {
	img := d.Image
	if img.Pending() {
		up, err := c.UploadAsset(ctx, img)
		if err != nil {
			return productBody{}, err
		}
		img = up
	}
	return productBody{Name: d.Name, Category: d.Category, Price: d.Price, Image: img.DirectURL()}, nil
}

func (c *HTTPClient) AddProduct(ctx context.Context, d ProductDraft) error {
	body, err := c.productBody(ctx, d)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/admin/products", body, nil)
}

func (c *HTTPClient) UpdateProduct(ctx context.Context, id int64, d ProductDraft) error {
	body, err := c.productBody(ctx, d)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/admin/products/"+strconv.FormatInt(id, 10), body, nil)
}

// UploadAsset streams the bytes of a pending ref to the backend and returns
// the URL-backed ref that replaces it.
func (c *HTTPClient) UploadAsset(ctx context.Context, ref asset.Ref) (asset.Ref, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", ref.UploadReader())
	if err != nil {
		return asset.Ref{}, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	req.ContentLength = int64(ref.Size())
	req.Header.Set("Content-Type", ref.ContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &out); err != nil {
		return asset.Ref{}, err
	}
	return ref.Uploaded(out.URL), nil
}

// Cart

func (c *HTTPClient) GetCartSummary(ctx context.Context) (models.CartSummary, error) {
	var out models.CartSummary
	err := c.do(ctx, http.MethodGet, "/cart", nil, &out)
	return out, err
}

type cartLineBody struct {
	ProductID int64 `json:"productId,omitempty"`
	Quantity  int64 `json:"quantity"`
}

func (c *HTTPClient) AddToCart(ctx context.Context, productID, quantity int64) error {
	return c.do(ctx, http.MethodPost, "/cart/items", cartLineBody{ProductID: productID, Quantity: quantity}, nil)
}

func (c *HTTPClient) UpdateCartItemQuantity(ctx context.Context, productID, quantity int64) error {
	return c.do(ctx, http.MethodPut, "/cart/items/"+strconv.FormatInt(productID, 10), cartLineBody{Quantity: quantity}, nil)
}

func (c *HTTPClient) RemoveItemFromCart(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+strconv.FormatInt(productID, 10), nil, nil)
}

func (c *HTTPClient) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

func (c *HTTPClient) Checkout(ctx context.Context, method models.PaymentMethod) (int64, error) {
	var out struct {
		OrderID int64 `json:"orderId"`
	}
	in := struct {
		PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	}{method}
	if err := c.do(ctx, http.MethodPost, "/checkout", in, &out); err != nil {
		return 0, err
	}
	return out.OrderID, nil
}

// Orders

func (c *HTTPClient) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	var out models.Order
	err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

func (c *HTTPClient) ListMyOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := c.do(ctx, http.MethodGet, "/orders/mine", nil, &out)
	return out, err
}

func (c *HTTPClient) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := c.do(ctx, http.MethodGet, "/admin/orders", nil, &out)
	return out, err
}

func (c *HTTPClient) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	in := struct {
		Status string `json:"status"`
	}{status}
	return c.do(ctx, http.MethodPatch, "/admin/orders/"+strconv.FormatInt(id, 10), in, nil)
}

// Identity

func (c *HTTPClient) GetCallerRole(ctx context.Context) (models.UserRole, error) {
	var out struct {
		Role models.UserRole `json:"role"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/role", nil, &out); err != nil {
		return "", err
	}
	return out.Role, nil
}

func (c *HTTPClient) IsCallerAdmin(ctx context.Context) (bool, error) {
	var out struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/admin", nil, &out); err != nil {
		return false, err
	}
	return out.IsAdmin, nil
}

func (c *HTTPClient) AssignRole(ctx context.Context, user string, role models.UserRole) error {
	in := struct {
		User string          `json:"user"`
		Role models.UserRole `json:"role"`
	}{user, role}
	return c.do(ctx, http.MethodPost, "/admin/roles", in, nil)
}

func (c *HTTPClient) GetCallerProfile(ctx context.Context) (models.Option[models.UserProfile], error) {
	return optional[models.UserProfile](c, ctx, "/me/profile")
}

func (c *HTTPClient) SaveCallerProfile(ctx context.Context, p models.UserProfile) error {
	return c.do(ctx, http.MethodPut, "/me/profile", p, nil)
}

func (c *HTTPClient) GetUserProfile(ctx context.Context, user string) (models.Option[models.UserProfile], error) {
	return optional[models.UserProfile](c, ctx, "/users/"+url.PathEscape(user)+"/profile")
}

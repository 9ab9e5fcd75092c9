// Package gatewaytest provides an in-memory gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/models"
)

// Hook runs before the named operation touches state. Returning an error
// fails the call. Blocking in a hook holds the call in flight.
type Hook func(ctx context.Context) error

// Fake is a single-caller in-memory gateway.
type Fake struct {
	mu sync.Mutex

	NotReady bool
	Caller   string
	roles    map[string]models.UserRole

	products   map[int64]models.Product
	nextProdID int64

	cart []cartLine

	orders      map[int64]models.Order
	nextOrderID int64

	profiles map[string]models.UserProfile

	calls map[string]int
	hooks map[string]Hook
}

type cartLine struct {
	productID int64
	qty       int64
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Caller:      "caller",
		roles:       map[string]models.UserRole{"caller": models.RoleUser},
		products:    make(map[int64]models.Product),
		nextProdID:  1,
		orders:      make(map[int64]models.Order),
		nextOrderID: 1,
		profiles:    make(map[string]models.UserProfile),
		calls:       make(map[string]int),
		hooks:       make(map[string]Hook),
	}
}

func (f *Fake) SetRole(user string, r models.UserRole) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[user] = r
}

// On installs h for the operation named like the interface method.
func (f *Fake) On(op string, h Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h == nil {
		delete(f.hooks, op)
		return
	}
	f.hooks[op] = h
}

func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Seed inserts a product directly and returns its id.
func (f *Fake) Seed(name, category string, price models.Money) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(gateway.ProductDraft{Name: name, Category: category, Price: price})
}

func (f *Fake) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	h := f.hooks[op]
	f.mu.Unlock()
	if h != nil {
		return h(ctx)
	}
	return nil
}

func (f *Fake) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.NotReady
}

func (f *Fake) roleLocked() models.UserRole {
	if r, ok := f.roles[f.Caller]; ok {
		return r
	}
	return models.RoleGuest
}

func (f *Fake) requireAdminLocked() error {
	if f.roleLocked() != models.RoleAdmin {
		return fmt.Errorf("%w: admin only", gateway.ErrUnauthorized)
	}
	return nil
}

func (f *Fake) insertLocked(d gateway.ProductDraft) int64 {
	id := f.nextProdID
	f.nextProdID++
	f.products[id] = models.Product{ID: id, Name: d.Name, Category: d.Category, Price: d.Price, Image: d.Image}
	return id
}

func (f *Fake) sortedProductsLocked(keep func(models.Product) bool) []models.Product {
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Product) int { return int(a.ID - b.ID) })
	return out
}

func (f *Fake) ListProducts(ctx context.Context) ([]models.Product, error) {
	if err := f.enter(ctx, "ListProducts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedProductsLocked(func(models.Product) bool { return true }), nil
}

func (f *Fake) ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if err := f.enter(ctx, "ListProductsByCategory"); err != nil {
		return nil, err
	}
	if category == "" {
		return nil, fmt.Errorf("%w: empty category", gateway.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedProductsLocked(func(p models.Product) bool { return p.Category == category }), nil
}

func (f *Fake) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	if err := f.enter(ctx, "SearchProducts"); err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedProductsLocked(func(p models.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), term)
	}), nil
}

func (f *Fake) GetProduct(ctx context.Context, id int64) (models.Option[models.Product], error) {
	if err := f.enter(ctx, "GetProduct"); err != nil {
		return models.None[models.Product](), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		return models.Some(p), nil
	}
	return models.None[models.Product](), nil
}

func (f *Fake) AddProduct(ctx context.Context, d gateway.ProductDraft) error {
	if err := f.enter(ctx, "AddProduct"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdminLocked(); err != nil {
		return err
	}
	f.insertLocked(d)
	return nil
}

func (f *Fake) UpdateProduct(ctx context.Context, id int64, d gateway.ProductDraft) error {
	if err := f.enter(ctx, "UpdateProduct"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdminLocked(); err != nil {
		return err
	}
	p, ok := f.products[id]
	if !ok {
		return fmt.Errorf("%w: product %d", gateway.ErrNotFound, id)
	}
	p.Name, p.Category, p.Price = d.Name, d.Category, d.Price
	if !d.Image.IsZero() {
		p.Image = d.Image
	}
	f.products[id] = p
	return nil
}

func (f *Fake) summaryLocked() (models.CartSummary, error) {
	s := models.CartSummary{Items: []models.CartItem{}}
	for _, l := range f.cart {
		item := models.CartItem{Product: f.products[l.productID], Quantity: l.qty}
		sub, err := item.Subtotal()
		if err != nil {
			return models.CartSummary{}, err
		}
		if s.Total, err = s.Total.Add(sub); err != nil {
			return models.CartSummary{}, err
		}
		s.TotalItems += l.qty
		s.Items = append(s.Items, item)
	}
	return s, nil
}

func (f *Fake) GetCartSummary(ctx context.Context) (models.CartSummary, error) {
	if err := f.enter(ctx, "GetCartSummary"); err != nil {
		return models.CartSummary{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaryLocked()
}

func (f *Fake) lineLocked(productID int64) int {
	return slices.IndexFunc(f.cart, func(l cartLine) bool { return l.productID == productID })
}

func (f *Fake) AddToCart(ctx context.Context, productID, quantity int64) error {
	if err := f.enter(ctx, "AddToCart"); err != nil {
		return err
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", gateway.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[productID]; !ok {
		return fmt.Errorf("%w: product %d", gateway.ErrNotFound, productID)
	}
	if i := f.lineLocked(productID); i >= 0 {
		f.cart[i].qty += quantity
		return nil
	}
	f.cart = append(f.cart, cartLine{productID: productID, qty: quantity})
	return nil
}

func (f *Fake) UpdateCartItemQuantity(ctx context.Context, productID, quantity int64) error {
	if err := f.enter(ctx, "UpdateCartItemQuantity"); err != nil {
		return err
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", gateway.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.lineLocked(productID)
	if i < 0 {
		return fmt.Errorf("%w: product %d not in cart", gateway.ErrNotFound, productID)
	}
	f.cart[i].qty = quantity
	return nil
}

func (f *Fake) RemoveItemFromCart(ctx context.Context, productID int64) error {
	if err := f.enter(ctx, "RemoveItemFromCart"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.lineLocked(productID); i >= 0 {
		f.cart = slices.Delete(f.cart, i, i+1)
	}
	return nil
}

func (f *Fake) ClearCart(ctx context.Context) error {
	if err := f.enter(ctx, "ClearCart"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cart = nil
	return nil
}

func (f *Fake) Checkout(ctx context.Context, method models.PaymentMethod) (int64, error) {
	if err := f.enter(ctx, "Checkout"); err != nil {
		return 0, err
	}
	if !method.Valid() {
		return 0, fmt.Errorf("%w: payment method %q", gateway.ErrValidation, method)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cart) == 0 {
		return 0, fmt.Errorf("%w: cart is empty", gateway.ErrValidation)
	}
	s, err := f.summaryLocked()
	if err != nil {
		return 0, err
	}
	id := f.nextOrderID
	f.nextOrderID++
	f.orders[id] = models.Order{
		ID:            id,
		Status:        models.OrderStatusPending,
		Total:         s.Total,
		PaymentMethod: method,
		Owner:         f.Caller,
		Products:      s.Items,
	}
	f.cart = nil
	return id, nil
}

func (f *Fake) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	if err := f.enter(ctx, "GetOrder"); err != nil {
		return models.Order{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || (o.Owner != f.Caller && f.roleLocked() != models.RoleAdmin) {
		return models.Order{}, fmt.Errorf("%w: order %d", gateway.ErrNotFound, id)
	}
	return o, nil
}

func (f *Fake) ordersLocked(keep func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b models.Order) int { return int(a.ID - b.ID) })
	return out
}

func (f *Fake) ListMyOrders(ctx context.Context) ([]models.Order, error) {
	if err := f.enter(ctx, "ListMyOrders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ordersLocked(func(o models.Order) bool { return o.Owner == f.Caller }), nil
}

func (f *Fake) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	if err := f.enter(ctx, "ListAllOrders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdminLocked(); err != nil {
		return nil, err
	}
	return f.ordersLocked(func(models.Order) bool { return true }), nil
}

func (f *Fake) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	if err := f.enter(ctx, "UpdateOrderStatus"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdminLocked(); err != nil {
		return err
	}
	o, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", gateway.ErrNotFound, id)
	}
	o.Status = status
	f.orders[id] = o
	return nil
}

func (f *Fake) GetCallerRole(ctx context.Context) (models.UserRole, error) {
	if err := f.enter(ctx, "GetCallerRole"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleLocked(), nil
}

func (f *Fake) IsCallerAdmin(ctx context.Context) (bool, error) {
	if err := f.enter(ctx, "IsCallerAdmin"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleLocked() == models.RoleAdmin, nil
}

func (f *Fake) AssignRole(ctx context.Context, user string, role models.UserRole) error {
	if err := f.enter(ctx, "AssignRole"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdminLocked(); err != nil {
		return err
	}
	f.roles[user] = role
	return nil
}

func (f *Fake) GetCallerProfile(ctx context.Context) (models.Option[models.UserProfile], error) {
	if err := f.enter(ctx, "GetCallerProfile"); err != nil {
		return models.None[models.UserProfile](), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[f.Caller]; ok {
		return models.Some(p), nil
	}
	return models.None[models.UserProfile](), nil
}

func (f *Fake) SaveCallerProfile(ctx context.Context, p models.UserProfile) error {
	if err := f.enter(ctx, "SaveCallerProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[f.Caller] = p
	return nil
}

func (f *Fake) GetUserProfile(ctx context.Context, user string) (models.Option[models.UserProfile], error) {
	if err := f.enter(ctx, "GetUserProfile"); err != nil {
		return models.None[models.UserProfile](), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if user != f.Caller && f.roleLocked() != models.RoleAdmin {
		return models.None[models.UserProfile](), fmt.Errorf("%w: profile of another user", gateway.ErrUnauthorized)
	}
	if p, ok := f.profiles[user]; ok {
		return models.Some(p), nil
	}
	return models.None[models.UserProfile](), nil
}

package models

import (
	"fmt"
	"slices"

	"github.com/Skotchmaster/storefront/internal/asset"
)

// CategoryAll selects every product on the products page. It is never stored
// on a product.
const CategoryAll = "All"

// Categories offered by the product form. Products may still carry free-form
// categories outside this set.
var Categories = []string{"Vegetables", "Dairy", "Groceries", "Food"}

// BrowseCategories is the products page filter list.
func BrowseCategories() []string {
	return append([]string{CategoryAll}, Categories...)
}

type Product struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    Money     `json:"price"`
	Image    asset.Ref `json:"image"`
}

// CartItem is one line of a cart or of an order snapshot.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int64   `json:"quantity"`
}

func (i CartItem) Subtotal() (Money, error) {
	return i.Product.Price.Times(i.Quantity)
}

type CartSummary struct {
	Items      []CartItem `json:"items"`
	TotalItems int64      `json:"totalItems"`
	Total      Money      `json:"total"`
}

func (s CartSummary) IsEmpty() bool { return len(s.Items) == 0 }

// Line returns the cart line for productID.
func (s CartSummary) Line(productID int64) Option[CartItem] {
	for _, it := range s.Items {
		if it.Product.ID == productID {
			return Some(it)
		}
	}
	return None[CartItem]()
}

// Validate checks the aggregate against its lines. The gateway computes the
// aggregate; the client only verifies it.
func (s CartSummary) Validate() error {
	var (
		total Money
		count int64
	)
	for _, it := range s.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("cart line %d: quantity %d < 1", it.Product.ID, it.Quantity)
		}
		sub, err := it.Subtotal()
		if err != nil {
			return fmt.Errorf("cart line %d: %w", it.Product.ID, err)
		}
		if total, err = total.Add(sub); err != nil {
			return err
		}
		count += it.Quantity
	}
	if total != s.Total {
		return fmt.Errorf("cart total %d != sum of lines %d", s.Total, total)
	}
	if count != s.TotalItems {
		return fmt.Errorf("cart item count %d != sum of quantities %d", s.TotalItems, count)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentCOD PaymentMethod = "COD"
	PaymentUPI PaymentMethod = "UPI"
)

var PaymentMethods = []PaymentMethod{PaymentCOD, PaymentUPI}

func (p PaymentMethod) Valid() bool { return slices.Contains(PaymentMethods, p) }

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCOD:
		return "Cash on Delivery"
	case PaymentUPI:
		return "UPI Payment"
	default:
		return string(p)
	}
}

const OrderStatusPending = "pending"

type Order struct {
	ID            int64         `json:"id"`
	Status        string        `json:"status"`
	Total         Money         `json:"total"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Owner         string        `json:"owner"`
	Products      []CartItem    `json:"products"`
}

type UserProfile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
	RoleGuest UserRole = "guest"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser || r == RoleGuest
}

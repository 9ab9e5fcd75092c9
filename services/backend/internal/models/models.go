package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/asset"
	api "github.com/Skotchmaster/storefront/internal/models"
)

type Product struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"not null"`
	Category  string    `gorm:"index;not null"`
	Price     int64     `gorm:"not null;check:price >= 0"`
	Image     string    `gorm:"not null;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Product) API() api.Product {
	return api.Product{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    api.Money(p.Price),
		Image:    asset.FromURL(p.Image),
	}
}

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	CreatedAt    time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type CartItem struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	UserID    string  `gorm:"size:36;not null;uniqueIndex:idx_cart_user_product"`
	ProductID int64   `gorm:"not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int64   `gorm:"not null;check:quantity > 0"`
	Product   Product `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time
}

type Order struct {
	ID            int64       `gorm:"primaryKey;autoIncrement"`
	UserID        string      `gorm:"size:36;index;not null"`
	Status        string      `gorm:"not null"`
	Total         int64       `gorm:"not null"`
	PaymentMethod string      `gorm:"not null"`
	Items         []OrderItem `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is a copy of the product as it was at checkout. Later catalog
// edits do not touch it.
type OrderItem struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	OrderID   int64  `gorm:"index;not null"`
	ProductID int64  `gorm:"not null"`
	Name      string `gorm:"not null"`
	Category  string `gorm:"not null"`
	Price     int64  `gorm:"not null"`
	Image     string `gorm:"not null;default:''"`
	Quantity  int64  `gorm:"not null;check:quantity > 0"`
}

func (o Order) API() api.Order {
	items := make([]api.CartItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, api.CartItem{
			Product: api.Product{
				ID:       it.ProductID,
				Name:     it.Name,
				Category: it.Category,
				Price:    api.Money(it.Price),
				Image:    asset.FromURL(it.Image),
			},
			Quantity: it.Quantity,
		})
	}
	return api.Order{
		ID:            o.ID,
		Status:        o.Status,
		Total:         api.Money(o.Total),
		PaymentMethod: api.PaymentMethod(o.PaymentMethod),
		Owner:         o.UserID,
		Products:      items,
	}
}

type Profile struct {
	UserID    string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"not null"`
	Address   string
	Phone     string
	UpdatedAt time.Time
}

func (p Profile) API() api.UserProfile {
	return api.UserProfile{Name: p.Name, Address: p.Address, Phone: p.Phone}
}

// All lists the tables for AutoMigrate.
func All() []any {
	return []any{&Product{}, &User{}, &CartItem{}, &Order{}, &OrderItem{}, &Profile{}}
}

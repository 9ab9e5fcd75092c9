package transport

import api "github.com/Skotchmaster/storefront/internal/models"

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	AccessExp   int64  `json:"access_exp"`
	Role        string `json:"role"`
}

type ProductRequest struct {
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    api.Money `json:"price"`
	Image    string    `json:"image"`
}

type CartLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

type CheckoutRequest struct {
	PaymentMethod api.PaymentMethod `json:"paymentMethod"`
}

type CheckoutResponse struct {
	OrderID int64 `json:"orderId"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type AssignRoleRequest struct {
	User string       `json:"user"`
	Role api.UserRole `json:"role"`
}

type RoleResponse struct {
	Role api.UserRole `json:"role"`
}

type IsAdminResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

type AssetResponse struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

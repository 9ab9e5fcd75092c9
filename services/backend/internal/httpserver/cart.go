package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/services/backend/internal/service"
	"github.com/Skotchmaster/storefront/services/backend/internal/transport"
)

type CartHTTP struct {
	Svc    *service.CartService
	Orders *service.OrderService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	s, err := h.Svc.GetCartSummary(ctx, middleware.UserID(c))
	if err != nil {
		return fail(l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_to_cart")

	var req transport.CartLineRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_to_cart_error", "invalid body", err)
	}
	if err := h.Svc.AddToCart(ctx, middleware.UserID(c), req.ProductID, req.Quantity); err != nil {
		return fail(l, "add_to_cart_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_quantity")

	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(l, "update_quantity_error", "productId is not a number", err)
	}
	var req transport.CartLineRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_quantity_error", "invalid body", err)
	}
	if err := h.Svc.UpdateCartItemQuantity(ctx, middleware.UserID(c), productID, req.Quantity); err != nil {
		return fail(l, "update_quantity_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(l, "remove_item_error", "productId is not a number", err)
	}
	if err := h.Svc.RemoveItemFromCart(ctx, middleware.UserID(c), productID); err != nil {
		return fail(l, "remove_item_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear_cart")

	if err := h.Svc.ClearCart(ctx, middleware.UserID(c)); err != nil {
		return fail(l, "clear_cart_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "checkout_error", "invalid body", err)
	}
	id, err := h.Orders.Checkout(ctx, middleware.UserID(c), req.PaymentMethod)
	if err != nil {
		return fail(l, "checkout_error", err)
	}

	l.Info("checkout_success", "order_id", id)
	return c.JSON(http.StatusCreated, transport.CheckoutResponse{OrderID: id})
}

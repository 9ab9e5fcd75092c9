package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/internal/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/Skotchmaster/storefront/services/backend/internal/service"
)

type Deps struct {
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Orders   *service.OrderService
	Identity *service.IdentityService
	Disk     asset.Disk

	JWTSecret []byte
	Metrics   *metrics.HTTP
	// Ready reports whether dependencies answer. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Common is the middleware every backend instance runs before the routes.
func Common() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		echomw.Recover(),
		echomw.RequestID(),
		echomw.Secure(),
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
		e.GET("/metrics", d.Metrics.Handler())
	}
	e.Use(csrf.Middleware(csrf.Config{SessionCookie: tokens.AccessCookie}))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewIdentityMiddleware(d.JWTSecret, d.Identity)
	user := []echo.MiddlewareFunc{authMW.Identify, authMW.RequireUser}
	admin := []echo.MiddlewareFunc{authMW.Identify, authMW.RequireAdmin}

	identity := &IdentityHTTP{Svc: d.Identity}
	catalog := &CatalogHTTP{Svc: d.Catalog}
	cart := &CartHTTP{Svc: d.Cart, Orders: d.Orders}
	orders := &OrderHTTP{Svc: d.Orders}
	assets := &AssetHTTP{Disk: d.Disk}

	auth := e.Group("/auth")
	auth.POST("/register", identity.Register)
	auth.POST("/login", identity.Login)

	products := e.Group("/catalog/products", authMW.Identify)
	products.GET("", catalog.GetProducts)
	products.GET("/search", catalog.SearchProducts)
	products.GET("/:id", catalog.GetProduct)

	e.GET("/assets/*", assets.Get)
	e.POST("/assets", assets.Upload, admin...)

	cartGroup := e.Group("/cart", user...)
	cartGroup.GET("", cart.GetCart)
	cartGroup.DELETE("", cart.ClearCart)
	cartGroup.POST("/items", cart.AddToCart)
	cartGroup.PUT("/items/:productId", cart.UpdateQuantity)
	cartGroup.DELETE("/items/:productId", cart.RemoveItem)
	e.POST("/checkout", cart.Checkout, user...)

	mine := e.Group("/orders", user...)
	mine.GET("/mine", orders.ListMine)
	mine.GET("/:id", orders.GetOrder)

	me := e.Group("/me", authMW.Identify)
	me.GET("/role", identity.Role)
	me.GET("/admin", identity.IsAdmin)
	me.GET("/profile", identity.GetProfile)
	me.PUT("/profile", identity.SaveProfile, authMW.RequireUser)
	e.GET("/users/:id/profile", identity.GetUserProfile, user...)

	adm := e.Group("/admin", admin...)
	adm.POST("/products", catalog.CreateProduct)
	adm.PUT("/products/:id", catalog.UpdateProduct)
	adm.GET("/orders", orders.ListAll)
	adm.PATCH("/orders/:id", orders.UpdateStatus)
	adm.POST("/roles", identity.AssignRole)
}

package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/identity"
)

type Deps struct {
	DB        *gorm.DB
	JWTSecret []byte

	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	PaymentHandler *PaymentHTTP
	AdminHandler   *AdminHTTP
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	// No identity: the callback signature is the trust boundary.
	v1.POST("/payment/webhook", d.PaymentHandler.Webhook)

	owned := v1.Group("", identity.Middleware(d.JWTSecret), identity.RequireOwner)

	owned.GET("/cart", d.CartHandler.GetCart)
	owned.POST("/cart/items", d.CartHandler.AddLine)
	owned.DELETE("/cart/items", d.CartHandler.RemoveLine)
	owned.POST("/cart/merge", d.CartHandler.MergeCart, identity.RequireAccount)

	owned.POST("/checkout", d.OrderHandler.Checkout)
	owned.GET("/orders", d.OrderHandler.ListOrders)
	owned.GET("/orders/:id", d.OrderHandler.GetOrder)
	owned.POST("/orders/:id/payment", d.OrderHandler.InitPayment)
	owned.POST("/orders/:id/payment-method", d.OrderHandler.SwitchPaymentMethod)

	admin := v1.Group("/admin", identity.Middleware(d.JWTSecret), identity.RequireAdmin)

	admin.POST("/orders/:id/status", d.AdminHandler.TransitionStatus)
	admin.POST("/orders/:id/mark-paid", d.AdminHandler.MarkPaid)
}

package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/greenbasket/shop/internal/payment"
	"github.com/greenbasket/shop/internal/transport"
	"github.com/greenbasket/shop/pkg/logging"
)

type PaymentHTTP struct {
	Svc *payment.Service
}

// Webhook consumes the gateway callback. The signature check inside
// HandleCallback is the only thing that decides success; a mismatch comes
// back to the gateway as a generic failure.
func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	var p payment.CallbackPayload
	if err := c.Bind(&p); err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Svc.HandleCallback(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSignatureMismatch):
			l.Warn("webhook_rejected", "status", 400, "gateway_order_id", p.GatewayOrderID)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "payment_failed", Message: "payment failed"})
		case errors.Is(err, payment.ErrNotFound):
			l.Warn("webhook_error", "status", 404, "gateway_order_id", p.GatewayOrderID)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "order_not_found", Message: "order not found"})
		default:
			l.Error("webhook_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("webhook_confirmed", "order_id", o.ID.String(), "order_number", o.OrderNumber)
	return c.JSON(http.StatusOK, o)
}

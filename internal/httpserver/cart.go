package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/greenbasket/shop/internal/cart"
	"github.com/greenbasket/shop/internal/identity"
	"github.com/greenbasket/shop/internal/inventory"
	"github.com/greenbasket/shop/internal/transport"
	"github.com/greenbasket/shop/pkg/logging"
)

type CartHTTP struct {
	Svc *cart.Service
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	basket, err := h.Svc.GetCart(ctx, identity.OwnerKey(c))
	if err != nil {
		l.Warn("get_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, basket)
}

func (h *CartHTTP) AddLine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_line")

	var req transport.CartLineRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_line_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.Svc.AddLine(ctx, identity.OwnerKey(c), req.VariantID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrValidation), errors.Is(err, cart.ErrBelowMinQuantity):
			l.Warn("add_line_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "validation", Message: err.Error()})
		case errors.Is(err, inventory.ErrVariantNotFound):
			l.Warn("add_line_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "variant_not_found", Message: "variant not found"})
		case errors.Is(err, cart.ErrOrderLimitExceeded):
			l.Warn("add_line_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "order_limit_exceeded", Message: err.Error()})
		case errors.Is(err, cart.ErrStockExceeded):
			l.Warn("add_line_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "stock_exceeded", Message: err.Error()})
		default:
			l.Error("add_line_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("add_line_success", "variant_id", req.VariantID.String(), "quantity", line.Quantity)
	return c.JSON(http.StatusOK, line)
}

func (h *CartHTTP) RemoveLine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_line")

	var req transport.CartLineRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("remove_line_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.Svc.RemoveLine(ctx, identity.OwnerKey(c), req.VariantID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrValidation):
			l.Warn("remove_line_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "validation", Message: err.Error()})
		case errors.Is(err, cart.ErrLineNotFound):
			l.Warn("remove_line_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "line_not_found", Message: "cart line not found"})
		default:
			l.Error("remove_line_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	if line == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, line)
}

// MergeCart is invoked by the web layer once per sign-in, carrying the
// pre-sign-in guest session token.
func (h *CartHTTP) MergeCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.merge_cart")

	var req transport.MergeCartRequest
	if err := c.Bind(&req); err != nil || req.GuestSessionToken == "" {
		l.Warn("merge_cart_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err := h.Svc.Merge(ctx, identity.GuestOwnerKey(req.GuestSessionToken), identity.OwnerKey(c))
	if err != nil {
		if errors.Is(err, cart.ErrValidation) {
			l.Warn("merge_cart_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "validation", Message: err.Error()})
		}
		l.Error("merge_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("merge_cart_success")
	return c.NoContent(http.StatusNoContent)
}

package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/greenbasket/shop/internal/order"
	"github.com/greenbasket/shop/internal/payment"
	"github.com/greenbasket/shop/internal/transport"
	"github.com/greenbasket/shop/pkg/logging"
)

// AdminHTTP exposes the operational surface: direct status transitions and
// manual cash-on-delivery settlement.
type AdminHTTP struct {
	Machine  *order.StatusMachine
	Payments *payment.Service
}

func (h *AdminHTTP) TransitionStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.transition_status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req transport.TransitionRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("transition_status_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Machine.Transition(ctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			l.Warn("transition_status_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "order_not_found", Message: "order not found"})
		case errors.Is(err, order.ErrInvalidTransition):
			l.Warn("transition_status_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "invalid_transition", Message: err.Error()})
		default:
			l.Error("transition_status_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("transition_status_success", "order_id", id.String(), "new_status", string(req.Status))
	return c.JSON(http.StatusOK, o)
}

func (h *AdminHTTP) MarkPaid(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.mark_paid")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req transport.MarkPaidRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("mark_paid_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	paidAt := time.Time{}
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	o, err := h.Payments.MarkPaidManually(ctx, id, paidAt)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotFound):
			l.Warn("mark_paid_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "order_not_found", Message: "order not found"})
		case errors.Is(err, payment.ErrNotPayable):
			l.Warn("mark_paid_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "not_payable", Message: err.Error()})
		default:
			l.Error("mark_paid_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("mark_paid_success", "order_id", id.String())
	return c.JSON(http.StatusOK, o)
}

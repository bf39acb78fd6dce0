package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/greenbasket/shop/internal/identity"
	"github.com/greenbasket/shop/internal/inventory"
	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/internal/order"
	"github.com/greenbasket/shop/internal/payment"
	"github.com/greenbasket/shop/internal/transport"
	"github.com/greenbasket/shop/pkg/logging"
)

type OrderHTTP struct {
	Factory  *order.Factory
	Svc      *order.Service
	Payments *payment.Service
}

// Checkout converts the cart into an order; for gateway payment it also
// initializes the remote intent. A gateway failure still leaves the PENDING
// order behind so payment can be retried without recreating it.
func (h *OrderHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	in := order.CheckoutInput{
		ShippingAddressID:     req.ShippingAddressID,
		NewShippingAddress:    addressInput(req.ShippingAddress),
		SetDefaultShipping:    req.SetDefaultShipping,
		BillingSameAsShipping: req.BillingSameAsShipping,
		BillingAddressID:      req.BillingAddressID,
		NewBillingAddress:     addressInput(req.BillingAddress),
		SetDefaultBilling:     req.SetDefaultBilling,
		PaymentMethod:         req.PaymentMethod,
		Notes:                 req.Notes,
	}

	o, err := h.Factory.CreateOrder(ctx, identity.OwnerKey(c), in)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrValidation):
			l.Warn("checkout_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "validation", Message: err.Error()})
		case errors.Is(err, order.ErrEmptyCart):
			l.Warn("checkout_error", "status", 422, "error", err)
			return c.JSON(http.StatusUnprocessableEntity, transport.ErrorResponse{Code: "empty_cart", Message: "cart is empty"})
		case errors.Is(err, inventory.ErrInsufficientStock):
			l.Warn("checkout_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "insufficient_stock", Message: "item no longer available in that quantity"})
		case errors.Is(err, inventory.ErrVariantNotFound):
			l.Warn("checkout_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "variant_unavailable", Message: "item no longer available"})
		default:
			l.Error("checkout_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	resp := transport.CheckoutResponse{Order: o}
	if o.PaymentMethod == models.PaymentMethodGateway {
		intent, err := h.Payments.InitializePayment(ctx, o.ID, o.OwnerKey, false)
		if err != nil {
			l.Warn("checkout_gateway_error", "status", 502, "order_id", o.ID.String(), "error", err)
			return c.JSON(http.StatusBadGateway, resp)
		}
		resp.PaymentIntent = intent
	}

	l.Info("checkout_success", "order_id", o.ID.String(), "order_number", o.OrderNumber, "total", o.Total)
	return c.JSON(http.StatusCreated, resp)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	orders, err := h.Svc.ListOrders(ctx, identity.OwnerKey(c), limit, offset)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	o, err := h.Svc.GetOrder(ctx, id, identity.OwnerKey(c), identity.IsAdmin(c))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			l.Warn("get_order_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "order_not_found", Message: "order not found"})
		}
		l.Error("get_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, o)
}

// InitPayment re-initializes a gateway intent after a failed attempt.
func (h *OrderHTTP) InitPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.init_payment")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	intent, err := h.Payments.InitializePayment(ctx, id, identity.OwnerKey(c), identity.IsAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotFound):
			l.Warn("init_payment_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "order_not_found", Message: "order not found"})
		case errors.Is(err, payment.ErrValidation):
			l.Warn("init_payment_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "validation", Message: err.Error()})
		case errors.Is(err, payment.ErrNotPayable):
			l.Warn("init_payment_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "not_payable", Message: err.Error()})
		case errors.Is(err, payment.ErrGatewayUnavailable):
			l.Warn("init_payment_error", "status", 502, "error", err)
			return c.JSON(http.StatusBadGateway, transport.ErrorResponse{Code: "gateway_unavailable", Message: "payment gateway unavailable, retry later"})
		default:
			l.Error("init_payment_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("init_payment_success", "order_id", id.String())
	return c.JSON(http.StatusOK, intent)
}

func (h *OrderHTTP) SwitchPaymentMethod(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.switch_payment_method")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req transport.SwitchPaymentMethodRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("switch_payment_method_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Payments.SwitchPaymentMethod(ctx, id, identity.OwnerKey(c), identity.IsAdmin(c), req.PaymentMethod)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotFound):
			l.Warn("switch_payment_method_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, transport.ErrorResponse{Code: "order_not_found", Message: "order not found"})
		case errors.Is(err, payment.ErrValidation):
			l.Warn("switch_payment_method_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Code: "validation", Message: err.Error()})
		case errors.Is(err, payment.ErrNotSwitchable):
			l.Warn("switch_payment_method_error", "status", 409, "error", err)
			return c.JSON(http.StatusConflict, transport.ErrorResponse{Code: "not_switchable", Message: err.Error()})
		default:
			l.Error("switch_payment_method_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("switch_payment_method_success", "order_id", id.String(), "method", string(req.PaymentMethod))
	return c.JSON(http.StatusOK, o)
}

func addressInput(req *transport.AddressRequest) *order.AddressInput {
	if req == nil {
		return nil
	}
	return &order.AddressInput{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}
}

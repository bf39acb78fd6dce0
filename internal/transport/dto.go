package transport

import (
	"time"

	"github.com/google/uuid"

	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/internal/payment"
)

type CartLineRequest struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

type MergeCartRequest struct {
	GuestSessionToken string `json:"guest_session_token"`
}

type AddressRequest struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type CheckoutRequest struct {
	ShippingAddressID  *uuid.UUID      `json:"shipping_address_id"`
	ShippingAddress    *AddressRequest `json:"shipping_address"`
	SetDefaultShipping bool            `json:"set_default_shipping"`

	BillingSameAsShipping bool            `json:"billing_same_as_shipping"`
	BillingAddressID      *uuid.UUID      `json:"billing_address_id"`
	BillingAddress        *AddressRequest `json:"billing_address"`
	SetDefaultBilling     bool            `json:"set_default_billing"`

	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Notes         string               `json:"notes"`
}

type CheckoutResponse struct {
	Order         *models.Order   `json:"order"`
	PaymentIntent *payment.Intent `json:"payment_intent,omitempty"`
}

type SwitchPaymentMethodRequest struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

type TransitionRequest struct {
	Status models.OrderStatus `json:"status"`
}

type MarkPaidRequest struct {
	PaidAt *time.Time `json:"paid_at"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

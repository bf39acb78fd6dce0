package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/events"
	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/pkg/logging"
)

var (
	ErrValidation        = errors.New("validation")
	ErrEmptyCart         = errors.New("empty cart")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// numberRetries bounds retries when two same-day checkouts race to the same
// order-number; the unique index rejects the loser and we recompute.
const numberRetries = 5

// PricingPolicy computes shipping and tax for an order. The baseline policy
// returns zero for both; storefront-specific policies plug in here.
type PricingPolicy interface {
	ShippingCost(subtotal, discountTotal int64) int64
	Tax(subtotal, discountTotal int64) int64
}

type ZeroPricing struct{}

func (ZeroPricing) ShippingCost(_, _ int64) int64 { return 0 }
func (ZeroPricing) Tax(_, _ int64) int64          { return 0 }

type AddressInput struct {
	FullName   string
	Phone      string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

type CheckoutInput struct {
	ShippingAddressID  *uuid.UUID
	NewShippingAddress *AddressInput
	SetDefaultShipping bool

	BillingSameAsShipping bool
	BillingAddressID      *uuid.UUID
	NewBillingAddress     *AddressInput
	SetDefaultBilling     bool

	PaymentMethod models.PaymentMethod
	Notes         string
}

type Factory struct {
	Repo      *GormRepo
	Policy    PricingPolicy
	Prefix    string
	Publisher events.Publisher
}

// CreateOrder converts the owner's cart into an immutable order: snapshot
// totals, persist addresses, decrement stock and consume the cart, all in one
// transaction. Any failure rolls the whole thing back and the cart survives.
func (f *Factory) CreateOrder(ctx context.Context, ownerKey string, in CheckoutInput) (*models.Order, error) {
	if ownerKey == "" {
		return nil, fmt.Errorf("owner key required: %w", ErrValidation)
	}
	if in.PaymentMethod != models.PaymentMethodGateway && in.PaymentMethod != models.PaymentMethodCashOnDelivery {
		return nil, fmt.Errorf("unknown payment method %q: %w", in.PaymentMethod, ErrValidation)
	}
	if in.ShippingAddressID == nil && in.NewShippingAddress == nil {
		return nil, fmt.Errorf("shipping address required: %w", ErrValidation)
	}
	if !in.BillingSameAsShipping && in.BillingAddressID == nil && in.NewBillingAddress == nil {
		return nil, fmt.Errorf("billing address required: %w", ErrValidation)
	}

	policy := f.Policy
	if policy == nil {
		policy = ZeroPricing{}
	}

	var (
		o   *models.Order
		err error
	)
	for attempt := 0; attempt < numberRetries; attempt++ {
		o, err = f.Repo.CreateOrder(ctx, ownerKey, in, policy, f.Prefix)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	f.publish(ctx, events.OrderEvent{
		Type:        "order_created",
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		OwnerKey:    o.OwnerKey,
		Status:      string(o.Status),
		Total:       o.Total,
	})
	return o, nil
}

func (f *Factory) publish(ctx context.Context, event events.OrderEvent) {
	if f.Publisher == nil {
		return
	}
	if err := f.Publisher.PublishEvent(ctx, events.TopicOrderEvents, event.OrderID, event); err != nil {
		logging.FromContext(ctx).Warn("order event publish failed", "type", event.Type, "error", err)
	}
}

// lineDiscount applies the snapshot discount: PERCENTAGE is a percent of the
// pre-discount line total, FIXED is a per-unit amount.
func lineDiscount(kind models.DiscountKind, amount, lineTotal int64, quantity int) int64 {
	switch kind {
	case models.DiscountPercentage:
		return lineTotal * amount / 100
	case models.DiscountFixed:
		return amount * int64(quantity)
	default:
		return 0
	}
}

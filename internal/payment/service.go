package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/events"
	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/pkg/logging"
)

var (
	ErrValidation        = errors.New("validation")
	ErrNotFound          = errors.New("order not found")
	ErrSignatureMismatch = errors.New("callback signature mismatch")
	ErrNotSwitchable     = errors.New("payment method not switchable")
	ErrNotPayable        = errors.New("order not payable")
)

// CallbackPayload is what the gateway webhook delivers. The signature is the
// only trusted success signal; nothing client-side can confirm a payment.
type CallbackPayload struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

type Service struct {
	DB        *gorm.DB
	Gateway   Gateway
	Secret    []byte
	Currency  string
	Publisher events.Publisher
}

// InitializePayment creates a gateway intent for the order total. The remote
// call runs outside any database transaction so no row locks are held across
// the network round trip; a gateway failure mutates nothing.
func (s *Service) InitializePayment(ctx context.Context, orderID uuid.UUID, ownerKey string, isAdmin bool) (*Intent, error) {
	o, err := s.loadOwned(ctx, orderID, ownerKey, isAdmin)
	if err != nil {
		return nil, err
	}

	if o.PaymentMethod != models.PaymentMethodGateway {
		return nil, fmt.Errorf("order %s pays by %s: %w", orderID, o.PaymentMethod, ErrValidation)
	}
	if err := payableGuard(o); err != nil {
		return nil, err
	}

	intent, err := s.Gateway.CreateIntent(ctx, o.Total, s.Currency, o.OrderNumber)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", o.ID).
		Update("gateway_order_id", intent.ID).Error; err != nil {
		return nil, err
	}

	s.publish(ctx, events.PaymentEvent{
		Type:           "payment_initialized",
		OrderID:        o.ID.String(),
		OrderNumber:    o.OrderNumber,
		GatewayOrderID: intent.ID,
	})
	return intent, nil
}

// VerifyCallback recomputes the HMAC-SHA256 signature over
// "<gatewayOrderID>|<gatewayPaymentID>" and compares in constant time.
func (s *Service) VerifyCallback(p CallbackPayload) bool {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(p.GatewayOrderID + "|" + p.GatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(p.Signature))
}

// HandleCallback is the webhook entry point: verify, then confirm. A bad
// signature is a security event — it is logged, published to the audit
// topic and the payment is marked failed, never confirmed.
func (s *Service) HandleCallback(ctx context.Context, p CallbackPayload) (*models.Order, error) {
	var o models.Order
	if err := s.DB.WithContext(ctx).First(&o, "gateway_order_id = ?", p.GatewayOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gateway order %s: %w", p.GatewayOrderID, ErrNotFound)
		}
		return nil, err
	}

	if !s.VerifyCallback(p) {
		logging.FromContext(ctx).Error("payment callback signature mismatch",
			"order_id", o.ID.String(),
			"order_number", o.OrderNumber,
			"gateway_order_id", p.GatewayOrderID,
			"gateway_payment_id", p.GatewayPaymentID,
		)
		s.publish(ctx, events.PaymentEvent{
			Type:             "signature_mismatch",
			OrderID:          o.ID.String(),
			OrderNumber:      o.OrderNumber,
			GatewayOrderID:   p.GatewayOrderID,
			GatewayPaymentID: p.GatewayPaymentID,
		})
		if _, err := s.MarkPaymentFailed(ctx, o.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order %s: %w", o.ID, ErrSignatureMismatch)
	}

	return s.ConfirmPayment(ctx, o.ID, p.GatewayPaymentID, time.Now().UTC())
}

// ConfirmPayment marks the order paid and confirmed. Idempotent: an already
// PAID order is returned untouched, PaidAt included.
func (s *Service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayPaymentID string, paidAt time.Time) (*models.Order, error) {
	var (
		out       models.Order
		confirmed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.First(&o, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
			}
			return err
		}

		if o.PaymentStatus == models.PaymentStatusPaid {
			out = o
			return nil
		}
		if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusRefunded {
			return fmt.Errorf("order %s is %s: %w", orderID, o.Status, ErrNotPayable)
		}

		updates := map[string]any{
			"payment_status": models.PaymentStatusPaid,
			"paid_at":        paidAt,
		}
		if gatewayPaymentID != "" {
			updates["gateway_payment_id"] = gatewayPaymentID
		}
		if o.Status == models.OrderStatusPending || o.Status == models.OrderStatusProcessing {
			updates["status"] = models.OrderStatusConfirmed
		}

		// The payment_status guard makes a concurrent duplicate callback a
		// no-op instead of a double apply.
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status <> ?", orderID, models.PaymentStatusPaid).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		confirmed = res.RowsAffected > 0

		return tx.First(&out, "id = ?", orderID).Error
	})
	if err != nil {
		return nil, err
	}

	if confirmed {
		s.publish(ctx, events.PaymentEvent{
			Type:             "payment_confirmed",
			OrderID:          out.ID.String(),
			OrderNumber:      out.OrderNumber,
			GatewayPaymentID: out.GatewayPaymentID,
		})
	}
	return &out, nil
}

// MarkPaymentFailed records the failure but leaves the order PENDING so the
// user can retry without recreating the order or touching stock.
func (s *Service) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var out models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status <> ?", orderID, models.PaymentStatusPaid).
			Update("payment_status", models.PaymentStatusFailed)
		if res.Error != nil {
			return res.Error
		}

		if err := tx.First(&out, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
			}
			return err
		}
		if res.RowsAffected == 0 && out.PaymentStatus == models.PaymentStatusPaid {
			return fmt.Errorf("order %s already paid: %w", orderID, ErrNotPayable)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.PaymentEvent{
		Type:        "payment_failed",
		OrderID:     out.ID.String(),
		OrderNumber: out.OrderNumber,
	})
	return &out, nil
}

// SwitchPaymentMethod lets a user abandon a failed gateway attempt for
// cash-on-delivery or vice versa, as long as nothing is paid and the order
// is still live. Switching resets a FAILED payment back to PENDING.
func (s *Service) SwitchPaymentMethod(ctx context.Context, orderID uuid.UUID, ownerKey string, isAdmin bool, method models.PaymentMethod) (*models.Order, error) {
	if method != models.PaymentMethodGateway && method != models.PaymentMethodCashOnDelivery {
		return nil, fmt.Errorf("unknown payment method %q: %w", method, ErrValidation)
	}

	var out models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.First(&o, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
			}
			return err
		}
		if !isAdmin && o.OwnerKey != ownerKey {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}

		if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusRefunded {
			return fmt.Errorf("order %s is %s: %w", orderID, o.Status, ErrNotSwitchable)
		}
		if o.PaymentStatus == models.PaymentStatusPaid {
			return fmt.Errorf("order %s already paid: %w", orderID, ErrNotSwitchable)
		}

		updates := map[string]any{"payment_method": method}
		if o.PaymentStatus == models.PaymentStatusFailed {
			updates["payment_status"] = models.PaymentStatusPending
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status <> ?", orderID, models.PaymentStatusPaid).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %s already paid: %w", orderID, ErrNotSwitchable)
		}

		return tx.First(&out, "id = ?", orderID).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.PaymentEvent{
		Type:        "payment_method_switched",
		OrderID:     out.ID.String(),
		OrderNumber: out.OrderNumber,
	})
	return &out, nil
}

// MarkPaidManually is the operator path for cash-on-delivery corrections;
// paidAt may be backdated. It goes through the same idempotence guard as the
// gateway confirmation.
func (s *Service) MarkPaidManually(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (*models.Order, error) {
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	return s.ConfirmPayment(ctx, orderID, "", paidAt)
}

func (s *Service) loadOwned(ctx context.Context, orderID uuid.UUID, ownerKey string, isAdmin bool) (*models.Order, error) {
	var o models.Order
	if err := s.DB.WithContext(ctx).First(&o, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	if !isAdmin && o.OwnerKey != ownerKey {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return &o, nil
}

func payableGuard(o *models.Order) error {
	if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusRefunded {
		return fmt.Errorf("order %s is %s: %w", o.ID, o.Status, ErrNotPayable)
	}
	if o.PaymentStatus == models.PaymentStatusPaid {
		return fmt.Errorf("order %s already paid: %w", o.ID, ErrNotPayable)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.PaymentEvent) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishEvent(ctx, events.TopicPaymentEvents, event.OrderID, event); err != nil {
		logging.FromContext(ctx).Warn("payment event publish failed", "type", event.Type, "error", err)
	}
}

package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/events"
	"github.com/greenbasket/shop/internal/inventory"
	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/pkg/logging"
)

// allowedTransitions is the whole lifecycle: forward fulfilment, CONFIRMED as
// the payment-success entry point, and CANCELLED/REFUNDED as compensating
// terminals. DELIVERED, CANCELLED and REFUNDED have no exits.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusConfirmed, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusConfirmed, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type StatusMachine struct {
	DB        *gorm.DB
	Publisher events.Publisher
}

// Transition moves an order to next if the lifecycle allows it. Entering
// CANCELLED or REFUNDED restores stock for every order item in the same
// transaction as the status write. The conditional UPDATE guards against a
// concurrent transition on the same order; the loser gets
// ErrInvalidTransition.
func (m *StatusMachine) Transition(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var out models.Order
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.First(&o, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
			}
			return err
		}

		if !CanTransition(o.Status, next) {
			return fmt.Errorf("%s -> %s: %w", o.Status, next, ErrInvalidTransition)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, o.Status).
			Update("status", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s -> %s: %w", o.Status, next, ErrInvalidTransition)
		}

		if next == models.OrderStatusCancelled || next == models.OrderStatusRefunded {
			var items []models.OrderItem
			if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
				return err
			}
			for _, it := range items {
				if err := inventory.Release(tx, it.VariantID, it.Quantity); err != nil {
					return err
				}
			}
		}

		return tx.Preload("Items").First(&out, "id = ?", orderID).Error
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, events.OrderEvent{
		Type:        "status_changed",
		OrderID:     out.ID.String(),
		OrderNumber: out.OrderNumber,
		Status:      string(out.Status),
	})
	return &out, nil
}

func (m *StatusMachine) publish(ctx context.Context, event events.OrderEvent) {
	if m.Publisher == nil {
		return
	}
	if err := m.Publisher.PublishEvent(ctx, events.TopicOrderEvents, event.OrderID, event); err != nil {
		logging.FromContext(ctx).Warn("order event publish failed", "type", event.Type, "error", err)
	}
}

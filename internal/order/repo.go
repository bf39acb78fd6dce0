package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/inventory"
	"github.com/greenbasket/shop/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

// CreateOrder runs the full checkout inside one transaction. The stock
// decrement at the end is the authoritative check; cart-time validation may
// be stale by the time we get here.
func (r *GormRepo) CreateOrder(ctx context.Context, ownerKey string, in CheckoutInput, policy PricingPolicy, prefix string) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Cart
		if err := tx.Where("owner_key = ?", ownerKey).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("owner %s: %w", ownerKey, ErrEmptyCart)
			}
			return err
		}

		var lines []models.CartLine
		if err := tx.Where("cart_id = ?", c.ID).Order("created_at").Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("owner %s: %w", ownerKey, ErrEmptyCart)
		}

		variantIDs := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			variantIDs = append(variantIDs, l.VariantID)
		}
		var vs []models.ProductVariant
		if err := tx.Where("id IN ?", variantIDs).Find(&vs).Error; err != nil {
			return err
		}
		variants := make(map[uuid.UUID]models.ProductVariant, len(vs))
		for _, v := range vs {
			variants[v.ID] = v
		}

		var subtotal, discountTotal int64
		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			v, ok := variants[l.VariantID]
			if !ok {
				return fmt.Errorf("variant %s: %w", l.VariantID, inventory.ErrVariantNotFound)
			}
			lineTotal := l.UnitPrice * int64(l.Quantity)
			discount := lineDiscount(l.DiscountKind, l.DiscountAmount, lineTotal, l.Quantity)
			items = append(items, models.OrderItem{
				ID:           uuid.New(),
				VariantID:    l.VariantID,
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice,
				LineDiscount: discount,
				LineTotal:    lineTotal,
				SKU:          v.SKU,
				Name:         v.Name,
			})
			subtotal += lineTotal
			discountTotal += discount
		}

		shippingID, err := r.resolveAddress(tx, ownerKey, models.AddressKindShipping, in.ShippingAddressID, in.NewShippingAddress, in.SetDefaultShipping)
		if err != nil {
			return err
		}
		billingID := shippingID
		if !in.BillingSameAsShipping {
			billingID, err = r.resolveAddress(tx, ownerKey, models.AddressKindBilling, in.BillingAddressID, in.NewBillingAddress, in.SetDefaultBilling)
			if err != nil {
				return err
			}
		}

		shippingCost := policy.ShippingCost(subtotal, discountTotal)
		tax := policy.Tax(subtotal, discountTotal)
		total := subtotal - discountTotal + shippingCost + tax

		number, err := nextOrderNumber(tx, prefix, time.Now())
		if err != nil {
			return err
		}

		order = models.Order{
			ID:                uuid.New(),
			OrderNumber:       number,
			OwnerKey:          ownerKey,
			Status:            models.OrderStatusPending,
			PaymentStatus:     models.PaymentStatusPending,
			PaymentMethod:     in.PaymentMethod,
			Subtotal:          subtotal,
			DiscountTotal:     discountTotal,
			ShippingCost:      shippingCost,
			Tax:               tax,
			Total:             total,
			ShippingAddressID: shippingID,
			BillingAddressID:  billingID,
			Notes:             in.Notes,
			Items:             items,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, l := range lines {
			if err := inventory.Reserve(tx, l.VariantID, l.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Where("cart_id = ?", c.ID).Delete(&models.CartLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Cart{}, "id = ?", c.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) resolveAddress(tx *gorm.DB, ownerKey string, kind models.AddressKind, id *uuid.UUID, in *AddressInput, setDefault bool) (uuid.UUID, error) {
	var addrID uuid.UUID

	if id != nil {
		var a models.Address
		if err := tx.First(&a, "id = ? AND owner_key = ?", *id, ownerKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, fmt.Errorf("address %s not found for owner: %w", *id, ErrValidation)
			}
			return uuid.Nil, err
		}
		addrID = a.ID
	} else {
		if in.Line1 == "" || in.City == "" || in.PostalCode == "" || in.Country == "" || in.FullName == "" {
			return uuid.Nil, fmt.Errorf("incomplete %s address: %w", kind, ErrValidation)
		}
		a := models.Address{
			ID:         uuid.New(),
			OwnerKey:   ownerKey,
			Kind:       kind,
			FullName:   in.FullName,
			Phone:      in.Phone,
			Line1:      in.Line1,
			Line2:      in.Line2,
			City:       in.City,
			Region:     in.Region,
			PostalCode: in.PostalCode,
			Country:    in.Country,
		}
		if err := tx.Create(&a).Error; err != nil {
			return uuid.Nil, err
		}
		addrID = a.ID
	}

	if setDefault {
		if err := tx.Model(&models.Address{}).
			Where("owner_key = ? AND kind = ? AND id <> ?", ownerKey, kind, addrID).
			Update("is_default", false).Error; err != nil {
			return uuid.Nil, err
		}
		if err := tx.Model(&models.Address{}).
			Where("id = ?", addrID).
			Update("is_default", true).Error; err != nil {
			return uuid.Nil, err
		}
	}
	return addrID, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, ownerKey string, limit, offset int) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("owner_key = ?", ownerKey)

	var orders []models.Order
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

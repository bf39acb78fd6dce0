package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/inventory"
	"github.com/greenbasket/shop/internal/models"
)

// errConflict marks an optimistic-concurrency miss; the service retries the
// whole transaction.
var errConflict = errors.New("cart conflict")

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) GetCart(ctx context.Context, ownerKey string) (*models.Cart, error) {
	var c models.Cart
	err := r.DB.WithContext(ctx).Preload("Lines").Where("owner_key = ?", ownerKey).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddLine resolves or creates the owner's cart and upserts the variant's
// line in one transaction. Quantity bounds are re-checked here, at commit
// time, so a stock drop between UI read and write is still caught.
func (r *GormRepo) AddLine(ctx context.Context, ownerKey string, variantID uuid.UUID, quantity int) (*models.CartLine, error) {
	var line models.CartLine
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := inventory.GetVariant(tx, variantID)
		if err != nil {
			return err
		}

		var c models.Cart
		err = tx.Where("owner_key = ?", ownerKey).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c = models.Cart{ID: uuid.New(), OwnerKey: ownerKey, IsActive: true}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		err = tx.Where("cart_id = ? AND variant_id = ?", c.ID, variantID).First(&line).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := validateQuantity(v, quantity, true); err != nil {
				return err
			}
			line = models.CartLine{
				ID:             uuid.New(),
				CartID:         c.ID,
				VariantID:      variantID,
				Quantity:       quantity,
				UnitPrice:      v.UnitPrice,
				DiscountKind:   v.DiscountKind,
				DiscountAmount: v.DiscountAmount,
			}
			return tx.Create(&line).Error
		}
		if err != nil {
			return err
		}

		newQuantity := line.Quantity + quantity
		if err := validateQuantity(v, newQuantity, false); err != nil {
			return err
		}

		res := tx.Model(&models.CartLine{}).
			Where("id = ? AND quantity = ?", line.ID, line.Quantity).
			Update("quantity", newQuantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConflict
		}
		line.Quantity = newQuantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// RemoveLine decrements the line's quantity, deleting the line at zero and
// the cart when its last line goes. Quantity never dips below zero.
func (r *GormRepo) RemoveLine(ctx context.Context, ownerKey string, variantID uuid.UUID, quantity int) (*models.CartLine, error) {
	var (
		line    models.CartLine
		deleted bool
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Cart
		if err := tx.Where("owner_key = ?", ownerKey).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("owner %s has no cart: %w", ownerKey, ErrLineNotFound)
			}
			return err
		}

		if err := tx.Where("cart_id = ? AND variant_id = ?", c.ID, variantID).First(&line).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("variant %s not in cart: %w", variantID, ErrLineNotFound)
			}
			return err
		}

		newQuantity := line.Quantity - quantity
		if newQuantity > 0 {
			res := tx.Model(&models.CartLine{}).
				Where("id = ? AND quantity = ?", line.ID, line.Quantity).
				Update("quantity", newQuantity)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errConflict
			}
			line.Quantity = newQuantity
			return nil
		}

		if err := tx.Delete(&models.CartLine{}, "id = ?", line.ID).Error; err != nil {
			return err
		}
		deleted = true

		var remaining int64
		if err := tx.Model(&models.CartLine{}).Where("cart_id = ?", c.ID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Delete(&models.Cart{}, "id = ?", c.ID).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, nil
	}
	return &line, nil
}

func validateQuantity(v *models.ProductVariant, quantity int, newLine bool) error {
	if v.MaxOrderQuantity != nil && quantity > *v.MaxOrderQuantity {
		return fmt.Errorf("quantity %d exceeds per-order limit %d: %w", quantity, *v.MaxOrderQuantity, ErrOrderLimitExceeded)
	}
	if quantity > v.StockQuantity {
		return fmt.Errorf("quantity %d exceeds stock %d: %w", quantity, v.StockQuantity, ErrStockExceeded)
	}
	if newLine && quantity < v.MinOrderQuantity {
		return fmt.Errorf("quantity %d below minimum %d: %w", quantity, v.MinOrderQuantity, ErrBelowMinQuantity)
	}
	return nil
}

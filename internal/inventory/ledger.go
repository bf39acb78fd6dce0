package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/models"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrVariantNotFound   = errors.New("variant not found")
)

// Reserve decrements a variant's stock inside the caller's transaction.
// The conditional WHERE keeps stock_quantity from ever going negative under
// concurrent checkouts; a zero-row update means the race was lost.
func Reserve(tx *gorm.DB, variantID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", quantity)
	}

	res := tx.Model(&models.ProductVariant{}).
		Where("id = ? AND stock_quantity >= ?", variantID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("variant %s: %w", variantID, ErrInsufficientStock)
	}
	return nil
}

// Release restores stock previously reserved by an order. Used as the
// compensating action for cancellation and refund, always inside the same
// transaction as the status write.
func Release(tx *gorm.DB, variantID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("release quantity must be positive, got %d", quantity)
	}

	res := tx.Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("variant %s: %w", variantID, ErrVariantNotFound)
	}
	return nil
}

// GetVariant loads a variant for validation reads.
func GetVariant(tx *gorm.DB, variantID uuid.UUID) (*models.ProductVariant, error) {
	var v models.ProductVariant
	if err := tx.First(&v, "id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("variant %s: %w", variantID, ErrVariantNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// MaxPurchasable is the hard cap for a cart line: the smaller of the per-order
// limit (unbounded when nil) and the current stock.
func MaxPurchasable(v *models.ProductVariant) int {
	max := v.StockQuantity
	if v.MaxOrderQuantity != nil && *v.MaxOrderQuantity < max {
		max = *v.MaxOrderQuantity
	}
	return max
}

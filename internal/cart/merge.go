package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/models"
)

// MergeGuestCartIntoAccount folds the guest cart identified by sessionKey
// into the account's cart. When both carts hold a line for the same variant
// the account line wins and the guest line is discarded; quantities are never
// summed. The guest cart row is removed unconditionally. One transaction,
// all-or-nothing.
func (r *GormRepo) MergeGuestCartIntoAccount(ctx context.Context, sessionKey, accountKey string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guest models.Cart
		err := tx.Where("owner_key = ?", sessionKey).First(&guest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var guestLines []models.CartLine
		if err := tx.Where("cart_id = ?", guest.ID).Find(&guestLines).Error; err != nil {
			return err
		}

		if len(guestLines) > 0 {
			account, err := r.findOrCreateCart(tx, accountKey)
			if err != nil {
				return err
			}

			taken := make(map[uuid.UUID]bool)
			var accountLines []models.CartLine
			if err := tx.Where("cart_id = ?", account.ID).Find(&accountLines).Error; err != nil {
				return err
			}
			for _, l := range accountLines {
				taken[l.VariantID] = true
			}

			for _, l := range guestLines {
				if taken[l.VariantID] {
					if err := tx.Delete(&models.CartLine{}, "id = ?", l.ID).Error; err != nil {
						return err
					}
					continue
				}
				res := tx.Model(&models.CartLine{}).Where("id = ?", l.ID).Update("cart_id", account.ID)
				if res.Error != nil {
					return res.Error
				}
			}
		}

		return tx.Delete(&models.Cart{}, "id = ?", guest.ID).Error
	})
}

func (r *GormRepo) findOrCreateCart(tx *gorm.DB, ownerKey string) (*models.Cart, error) {
	var c models.Cart
	err := tx.Where("owner_key = ?", ownerKey).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = models.Cart{ID: uuid.New(), OwnerKey: ownerKey, IsActive: true}
		if err := tx.Create(&c).Error; err != nil {
			return nil, err
		}
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/models"
)

// nextOrderNumber produces PREFIX-YYYYMMDD-NNNN with a per-day sequence.
// The read-max-then-increment is not race-free on its own; the unique index
// on order_number plus the factory's retry loop closes it.
func nextOrderNumber(tx *gorm.DB, prefix string, now time.Time) (string, error) {
	pat := fmt.Sprintf("%s-%s-", prefix, now.UTC().Format("20060102"))

	var last []string
	if err := tx.Model(&models.Order{}).
		Where("order_number LIKE ?", pat+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &last).Error; err != nil {
		return "", err
	}

	seq := 1
	if len(last) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(last[0], pat)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", pat, seq), nil
}

package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/greenbasket/shop/internal/models"
)

// Service exposes the read side: order lookup with owner/admin authorization
// and order history.
type Service struct {
	Repo *GormRepo
}

// GetOrder returns ErrNotFound for both absent orders and orders the caller
// does not own, so the two cases are indistinguishable to the client.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID, requestingOwnerKey string, isAdmin bool) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.OwnerKey != requestingOwnerKey {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, ownerKey string, limit, offset int) ([]models.Order, error) {
	if ownerKey == "" {
		return nil, fmt.Errorf("owner key required: %w", ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListOrders(ctx, ownerKey, limit, offset)
}

package cart

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
	ErrValidation         = errors.New("validation")
	ErrStockExceeded      = errors.New("stock exceeded")
	ErrOrderLimitExceeded = errors.New("order limit exceeded")
	ErrBelowMinQuantity   = errors.New("below minimum quantity")
	ErrLineNotFound       = errors.New("cart line not found")
)

// maxRetries bounds retries on optimistic-concurrency misses and on
// duplicate-key races when two requests create the same cart at once.
const maxRetries = 3

type Service struct {
	Repo      *GormRepo
	Publisher events.Publisher
}

func (s *Service) GetCart(ctx context.Context, ownerKey string) (*models.Cart, error) {
	if ownerKey == "" {
		return nil, fmt.Errorf("owner key required: %w", ErrValidation)
	}
	return s.Repo.GetCart(ctx, ownerKey)
}

func (s *Service) AddLine(ctx context.Context, ownerKey string, variantID uuid.UUID, quantity int) (*models.CartLine, error) {
	if ownerKey == "" {
		return nil, fmt.Errorf("owner key required: %w", ErrValidation)
	}
	if variantID == uuid.Nil {
		return nil, fmt.Errorf("variant id required: %w", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}

	var (
		line *models.CartLine
		err  error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		line, err = s.Repo.AddLine(ctx, ownerKey, variantID, quantity)
		if errors.Is(err, errConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{
		Type:      "line_added",
		OwnerKey:  ownerKey,
		VariantID: variantID.String(),
		Quantity:  quantity,
	}, ownerKey)
	return line, nil
}

func (s *Service) RemoveLine(ctx context.Context, ownerKey string, variantID uuid.UUID, quantity int) (*models.CartLine, error) {
	if ownerKey == "" {
		return nil, fmt.Errorf("owner key required: %w", ErrValidation)
	}
	if variantID == uuid.Nil {
		return nil, fmt.Errorf("variant id required: %w", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}

	var (
		line *models.CartLine
		err  error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		line, err = s.Repo.RemoveLine(ctx, ownerKey, variantID, quantity)
		if errors.Is(err, errConflict) {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{
		Type:      "line_removed",
		OwnerKey:  ownerKey,
		VariantID: variantID.String(),
		Quantity:  quantity,
	}, ownerKey)
	return line, nil
}

// Merge runs once per sign-in, before the account cart is otherwise touched.
func (s *Service) Merge(ctx context.Context, sessionKey, accountKey string) error {
	if sessionKey == "" || accountKey == "" {
		return fmt.Errorf("session and account keys required: %w", ErrValidation)
	}
	if sessionKey == accountKey {
		return fmt.Errorf("session and account keys must differ: %w", ErrValidation)
	}

	if err := s.Repo.MergeGuestCartIntoAccount(ctx, sessionKey, accountKey); err != nil {
		return err
	}

	s.publish(ctx, events.CartEvent{Type: "cart_merged", OwnerKey: accountKey}, accountKey)
	return nil
}

func (s *Service) publish(ctx context.Context, event events.CartEvent, key string) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishEvent(ctx, events.TopicCartEvents, key, event); err != nil {
		logging.FromContext(ctx).Warn("cart event publish failed", "type", event.Type, "error", err)
	}
}

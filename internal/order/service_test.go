package order

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/internal/testutil"
)

func TestGetOrder_OwnerAndAdmin(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{Repo: &GormRepo{DB: db}}
	ctx := context.Background()

	o := seedOrderWithStatus(t, db, models.OrderStatusPending)

	got, err := svc.GetOrder(ctx, o.ID, "acct:alice", false)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	// A stranger gets the same error as for a missing order.
	_, err = svc.GetOrder(ctx, o.ID, "acct:mallory", false)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = svc.GetOrder(ctx, o.ID, "acct:mallory", true)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestListOrders_ScopedAndOrdered(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{Repo: &GormRepo{DB: db}}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o := models.Order{
			ID:            uuid.New(),
			OrderNumber:   fmt.Sprintf("GB-20260829-%04d", i+1),
			OwnerKey:      "acct:alice",
			Status:        models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			PaymentMethod: models.PaymentMethodGateway,
		}
		require.NoError(t, db.Create(&o).Error)
	}
	seedOrderWithStatus(t, db, models.OrderStatusPending) // acct:alice too
	other := seedOrderWithStatus(t, db, models.OrderStatusPending)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", other.ID).
		Update("owner_key", "acct:bob").Error)

	orders, err := svc.ListOrders(ctx, "acct:alice", 0, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 4)
	for _, o := range orders {
		assert.Equal(t, "acct:alice", o.OwnerKey)
	}

	page, err := svc.ListOrders(ctx, "acct:alice", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = svc.ListOrders(ctx, "", 10, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

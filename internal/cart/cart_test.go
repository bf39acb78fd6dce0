package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/events"
	"github.com/greenbasket/shop/internal/inventory"
	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/internal/testutil"
)

type variantOpts struct {
	stock    int
	min      int
	max      *int
	price    int64
	discKind models.DiscountKind
	discAmt  int64
}

func seedVariant(t *testing.T, db *gorm.DB, opts variantOpts) models.ProductVariant {
	t.Helper()
	if opts.min == 0 {
		opts.min = 1
	}
	if opts.discKind == "" {
		opts.discKind = models.DiscountNone
	}
	v := models.ProductVariant{
		ID:               uuid.New(),
		Name:             "Basmati Rice 5kg",
		SKU:              "SKU-" + uuid.NewString()[:8],
		UnitPrice:        opts.price,
		DiscountKind:     opts.discKind,
		DiscountAmount:   opts.discAmt,
		StockQuantity:    opts.stock,
		MinOrderQuantity: opts.min,
		MaxOrderQuantity: opts.max,
	}
	require.NoError(t, db.Create(&v).Error)
	return v
}

func newService(db *gorm.DB) (*Service, *testutil.RecorderPublisher) {
	pub := &testutil.RecorderPublisher{}
	return &Service{Repo: &GormRepo{DB: db}, Publisher: pub}, pub
}

func TestAddLine_CreatesCartLazily(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, pub := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 500})

	line, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, int64(500), line.UnitPrice, "price snapshotted at add time")

	var carts []models.Cart
	require.NoError(t, db.Find(&carts).Error)
	require.Len(t, carts, 1)
	assert.Equal(t, "sess:guest-1", carts[0].OwnerKey)

	types := pub.EventTypes(events.TopicCartEvents)
	assert.Contains(t, types, "line_added")
}

func TestAddLine_IncrementsExistingLine(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 500})

	for i := 0; i < 3; i++ {
		_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 1)
		require.NoError(t, err)
	}

	var lines []models.CartLine
	require.NoError(t, db.Find(&lines).Error)
	require.Len(t, lines, 1, "one line per (cart, variant)")
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestAddLine_SnapshotSurvivesPriceChange(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 500, discKind: models.DiscountPercentage, discAmt: 10})

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 1)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.ProductVariant{}).Where("id = ?", v.ID).
		Updates(map[string]any{"unit_price": 999, "discount_amount": 50}).Error)

	line, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), line.UnitPrice)
	assert.Equal(t, int64(10), line.DiscountAmount)
}

func TestAddLine_OrderLimitCheckedAtCommit(t *testing.T) {
	// Stock 10, per-order limit 5: three adds of 1 reach 3, then adding 3
	// more would land on 6 and must be rejected with the line untouched.
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	max := 5
	v := seedVariant(t, db, variantOpts{stock: 10, max: &max, price: 100})

	for i := 0; i < 3; i++ {
		_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 1)
		require.NoError(t, err)
	}

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderLimitExceeded)

	var line models.CartLine
	require.NoError(t, db.First(&line, "variant_id = ?", v.ID).Error)
	assert.Equal(t, 3, line.Quantity)
}

func TestAddLine_StockCheckedAtCommit(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 5, price: 100})

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 3)
	require.NoError(t, err)

	// Stock drops after the first add; the next add re-validates against
	// the current stock, not the one seen at UI time.
	require.NoError(t, db.Model(&models.ProductVariant{}).Where("id = ?", v.ID).
		Update("stock_quantity", 3).Error)

	_, err = svc.AddLine(ctx, "sess:guest-1", v.ID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStockExceeded)
}

func TestAddLine_BelowMinimumQuantity(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, min: 3, price: 100})

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 2)
	assert.ErrorIs(t, err, ErrBelowMinQuantity)

	_, err = svc.AddLine(ctx, "sess:guest-1", v.ID, 3)
	require.NoError(t, err)
}

func TestAddLine_UnknownVariant(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)

	_, err := svc.AddLine(context.Background(), "sess:guest-1", uuid.New(), 1)
	assert.ErrorIs(t, err, inventory.ErrVariantNotFound)
}

func TestAddLine_Validation(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()

	tests := []struct {
		name     string
		ownerKey string
		variant  uuid.UUID
		quantity int
	}{
		{name: "empty owner", ownerKey: "", variant: uuid.New(), quantity: 1},
		{name: "nil variant", ownerKey: "sess:g", variant: uuid.Nil, quantity: 1},
		{name: "zero quantity", ownerKey: "sess:g", variant: uuid.New(), quantity: 0},
		{name: "negative quantity", ownerKey: "sess:g", variant: uuid.New(), quantity: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddLine(ctx, tt.ownerKey, tt.variant, tt.quantity)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRemoveLine_DecrementAndDelete(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 100})

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 3)
	require.NoError(t, err)

	line, err := svc.RemoveLine(ctx, "sess:guest-1", v.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, 2, line.Quantity)

	// Removing more than remains floors at deletion, never negative.
	line, err = svc.RemoveLine(ctx, "sess:guest-1", v.ID, 5)
	require.NoError(t, err)
	assert.Nil(t, line)

	var lineCount, cartCount int64
	require.NoError(t, db.Model(&models.CartLine{}).Count(&lineCount).Error)
	require.NoError(t, db.Model(&models.Cart{}).Count(&cartCount).Error)
	assert.Zero(t, lineCount)
	assert.Zero(t, cartCount, "empty carts must not persist")
}

func TestRemoveLine_KeepsCartWithOtherLines(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v1 := seedVariant(t, db, variantOpts{stock: 10, price: 100})
	v2 := seedVariant(t, db, variantOpts{stock: 10, price: 200})

	_, err := svc.AddLine(ctx, "sess:guest-1", v1.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "sess:guest-1", v2.ID, 1)
	require.NoError(t, err)

	line, err := svc.RemoveLine(ctx, "sess:guest-1", v1.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, line)

	var cartCount int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&cartCount).Error)
	assert.Equal(t, int64(1), cartCount)
}

func TestRemoveLine_NotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 100})

	_, err := svc.RemoveLine(ctx, "sess:guest-1", v.ID, 1)
	assert.ErrorIs(t, err, ErrLineNotFound, "no cart at all")

	_, err = svc.AddLine(ctx, "sess:guest-1", v.ID, 1)
	require.NoError(t, err)

	_, err = svc.RemoveLine(ctx, "sess:guest-1", uuid.New(), 1)
	assert.ErrorIs(t, err, ErrLineNotFound, "cart exists, line does not")
}

func TestGetCart_AbsentIsNil(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)

	c, err := svc.GetCart(context.Background(), "sess:nobody")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestGetCart_ResolvesLines(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 100})

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 2)
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, "sess:guest-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, v.ID, c.Lines[0].VariantID)
}

func TestMerge_AccountLineWins(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 100})

	_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, 4)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "acct:alice", v.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Merge(ctx, "sess:guest-1", "acct:alice"))

	account, err := svc.GetCart(ctx, "acct:alice")
	require.NoError(t, err)
	require.Len(t, account.Lines, 1)
	assert.Equal(t, 2, account.Lines[0].Quantity, "account quantity retained, never summed")

	guest, err := svc.GetCart(ctx, "sess:guest-1")
	require.NoError(t, err)
	assert.Nil(t, guest, "guest cart row removed")
}

func TestMerge_ReparentsNewLines(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v1 := seedVariant(t, db, variantOpts{stock: 10, price: 100})
	v2 := seedVariant(t, db, variantOpts{stock: 10, price: 200})

	_, err := svc.AddLine(ctx, "sess:guest-1", v1.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "sess:guest-1", v2.ID, 3)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "acct:alice", v1.ID, 5)
	require.NoError(t, err)

	require.NoError(t, svc.Merge(ctx, "sess:guest-1", "acct:alice"))

	account, err := svc.GetCart(ctx, "acct:alice")
	require.NoError(t, err)
	require.Len(t, account.Lines, 2)

	byVariant := map[uuid.UUID]int{}
	for _, l := range account.Lines {
		byVariant[l.VariantID] = l.Quantity
	}
	assert.Equal(t, 5, byVariant[v1.ID])
	assert.Equal(t, 3, byVariant[v2.ID])
}

func TestMerge_NoGuestCartIsNoop(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 10, price: 100})

	_, err := svc.AddLine(ctx, "acct:alice", v.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Merge(ctx, "sess:ghost", "acct:alice"))

	account, err := svc.GetCart(ctx, "acct:alice")
	require.NoError(t, err)
	require.Len(t, account.Lines, 1)
	assert.Equal(t, 2, account.Lines[0].Quantity)
}

func TestMerge_EmptyGuestCartDoesNotCreateAccountCart(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()

	// An empty guest cart should not normally exist, but the merge still
	// removes it without leaving an empty account cart behind.
	guest := models.Cart{ID: uuid.New(), OwnerKey: "sess:guest-1", IsActive: true}
	require.NoError(t, db.Create(&guest).Error)

	require.NoError(t, svc.Merge(ctx, "sess:guest-1", "acct:alice"))

	var cartCount int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&cartCount).Error)
	assert.Zero(t, cartCount)
}

func TestMerge_Validation(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Merge(ctx, "", "acct:alice"), ErrValidation)
	assert.ErrorIs(t, svc.Merge(ctx, "sess:g", ""), ErrValidation)
	assert.ErrorIs(t, svc.Merge(ctx, "acct:alice", "acct:alice"), ErrValidation)
}

func TestAddRemoveSequenceMatchesSum(t *testing.T) {
	db := testutil.OpenDB(t)
	svc, _ := newService(db)
	ctx := context.Background()
	v := seedVariant(t, db, variantOpts{stock: 100, price: 100})

	adds := []int{3, 2, 5}
	removes := []int{1, 4}
	for _, q := range adds {
		_, err := svc.AddLine(ctx, "sess:guest-1", v.ID, q)
		require.NoError(t, err)
	}
	for _, q := range removes {
		_, err := svc.RemoveLine(ctx, "sess:guest-1", v.ID, q)
		require.NoError(t, err)
	}

	c, err := svc.GetCart(ctx, "sess:guest-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity, "3+2+5-1-4")
}

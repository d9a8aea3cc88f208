package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

type stubTxRunner struct {
	db *gorm.DB
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(s.db.WithContext(ctx))
}

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.CartRecord{}, &models.CartItem{}))

	svc, err := NewService(NewRepository(conn), stubTxRunner{db: conn})
	require.NoError(t, err)
	return svc
}

func addApples(t *testing.T, svc Service, deviceID uuid.UUID, qty string) *View {
	t.Helper()
	view, err := svc.AddItem(context.Background(), deviceID, AddItemInput{
		ProductID: "prod-apples",
		Name:      "Apples",
		Price:     decimal.RequireFromString("2.50"),
		Unit:      enums.ProductUnitPound,
		Quantity:  decimal.RequireFromString(qty),
	})
	require.NoError(t, err)
	return view
}

func TestAddItemComputesLineTotal(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()

	view := addApples(t, svc, deviceID, "1.5")
	require.Len(t, view.Items, 1)
	require.Equal(t, "3.75", view.Items[0].LineTotal.StringFixed(2))
	require.Equal(t, "3.75", view.Subtotal.StringFixed(2))
	require.Equal(t, 1, view.ItemCount)
}

func TestAddItemSameProductYieldsSeparateLines(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()

	addApples(t, svc, deviceID, "1")
	view := addApples(t, svc, deviceID, "2")
	require.Len(t, view.Items, 2)
	require.NotEqual(t, view.Items[0].ID, view.Items[1].ID)
	require.Less(t, view.Items[0].Position, view.Items[1].Position)
}

func TestAddItemValidation(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()

	_, err := svc.AddItem(context.Background(), deviceID, AddItemInput{
		Name:     "Apples",
		Unit:     enums.ProductUnitPound,
		Price:    decimal.NewFromInt(2),
		Quantity: decimal.Zero,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.AddItem(context.Background(), deviceID, AddItemInput{
		Name:     "Apples",
		Unit:     enums.ProductUnit("bundle"),
		Price:    decimal.NewFromInt(2),
		Quantity: decimal.NewFromInt(1),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateItemQuantityAndRemoveAtZero(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()

	view := addApples(t, svc, deviceID, "1")
	itemID := view.Items[0].ID

	view, err := svc.UpdateItem(context.Background(), deviceID, itemID, decimal.RequireFromString("3"))
	require.NoError(t, err)
	require.Equal(t, "7.50", view.Items[0].LineTotal.StringFixed(2))

	view, err = svc.UpdateItem(context.Background(), deviceID, itemID, decimal.Zero)
	require.NoError(t, err)
	require.Empty(t, view.Items)
}

func TestUpdateAndRemoveUnknownItemAreNoOps(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()
	addApples(t, svc, deviceID, "1")

	view, err := svc.UpdateItem(context.Background(), deviceID, uuid.New(), decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	view, err = svc.RemoveItem(context.Background(), deviceID, uuid.New())
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
}

func TestDiscountPercentageFixedAndClamp(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()
	addApples(t, svc, deviceID, "4") // subtotal 10.00

	view, err := svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypePercentage,
		Value: decimal.NewFromInt(10),
		Label: "member",
	})
	require.NoError(t, err)
	require.Equal(t, "1.00", view.DiscountAmount.StringFixed(2))
	require.Equal(t, "9.00", view.Total.StringFixed(2))

	// Applying again overwrites, never stacks.
	view, err = svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypeFixed,
		Value: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	require.Equal(t, "10.00", view.DiscountAmount.StringFixed(2))
	require.True(t, view.Total.IsZero())
}

func TestDiscountValidation(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()

	_, err := svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypePercentage,
		Value: decimal.NewFromInt(150),
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountType("bogus"),
		Value: decimal.NewFromInt(5),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestRemoveDiscount(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()
	addApples(t, svc, deviceID, "4")

	_, err := svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypeFixed,
		Value: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	view, err := svc.RemoveDiscount(context.Background(), deviceID)
	require.NoError(t, err)
	require.True(t, view.DiscountAmount.IsZero())
	require.Equal(t, "10.00", view.Total.StringFixed(2))
}

func TestClearRemovesItemsAndDiscount(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()
	addApples(t, svc, deviceID, "2")

	_, err := svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypePercentage,
		Value: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), deviceID))

	view, err := svc.Get(context.Background(), deviceID)
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.Equal(t, enums.DiscountTypeNone, view.Record.DiscountType)
	require.True(t, view.Subtotal.IsZero())
}

func TestRestoreItemsLeavesDiscountUntouched(t *testing.T) {
	svc := newTestService(t)
	deviceID := uuid.New()

	view := addApples(t, svc, deviceID, "2")
	snapshot := make([]models.CartItem, len(view.Items))
	copy(snapshot, view.Items)

	_, err := svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypePercentage,
		Value: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), deviceID))

	// Reapply a discount, then restore: items come back verbatim and the
	// standing discount stays in place.
	_, err = svc.ApplyDiscount(context.Background(), deviceID, DiscountInput{
		Type:  enums.DiscountTypeFixed,
		Value: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RestoreItems(context.Background(), deviceID, snapshot))

	restored, err := svc.Get(context.Background(), deviceID)
	require.NoError(t, err)
	require.Len(t, restored.Items, 1)
	require.Equal(t, snapshot[0].ID, restored.Items[0].ID)
	require.Equal(t, enums.DiscountTypeFixed, restored.Record.DiscountType)
}

func TestCartPersistsAcrossServiceInstances(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.CartRecord{}, &models.CartItem{}))

	deviceID := uuid.New()

	first, err := NewService(NewRepository(conn), stubTxRunner{db: conn})
	require.NoError(t, err)
	_, err = first.AddItem(context.Background(), deviceID, AddItemInput{
		Name:     "Squash",
		Price:    decimal.NewFromInt(3),
		Unit:     enums.ProductUnitEach,
		Quantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	second, err := NewService(NewRepository(conn), stubTxRunner{db: conn})
	require.NoError(t, err)
	view, err := second.Get(context.Background(), deviceID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, "6.00", view.Subtotal.StringFixed(2))
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded, "expected coded error, got %v", err)
	require.Equal(t, code, coded.Code())
}

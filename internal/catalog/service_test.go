package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/outbox"
)

type stubTxRunner struct {
	db *gorm.DB
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(s.db.WithContext(ctx))
}

type stubOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubRemote struct {
	clearErr error
	cleared  int
	products []mirror.ProductDoc
	prodErr  error
}

func (s *stubRemote) ClearProducts(context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cleared++
	return nil
}

func (s *stubRemote) Products(context.Context) ([]mirror.ProductDoc, error) {
	return s.products, s.prodErr
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}))
	return conn
}

func newTestService(t *testing.T, remote remoteCatalog) (Service, *stubOutbox, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	ob := &stubOutbox{}
	svc, err := NewService(NewRepository(conn), stubTxRunner{db: conn}, ob, remote)
	require.NoError(t, err)
	return svc, ob, conn
}

func input(name, price string, unit enums.ProductUnit, category string) ProductInput {
	return ProductInput{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Unit:     unit,
		Category: category,
	}
}

func TestAddProductDefaultsAndEmits(t *testing.T) {
	svc, ob, _ := newTestService(t, nil)

	product, err := svc.AddProduct(context.Background(), input("Kale", "2.00", enums.ProductUnitEach, ""))
	require.NoError(t, err)
	require.NotEmpty(t, product.ID)
	require.Equal(t, DefaultCategory, product.Category)
	require.True(t, product.Active)

	require.Len(t, ob.events, 1)
	require.Equal(t, enums.EventProductAdded, ob.events[0].EventType)
	require.Equal(t, product.ID, ob.events[0].AggregateID)
}

func TestAddProductValidation(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.AddProduct(context.Background(), ProductInput{
		Name:  "  ",
		Price: decimal.NewFromInt(1),
		Unit:  enums.ProductUnitEach,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.AddProduct(context.Background(), ProductInput{
		Name:  "Kale",
		Price: decimal.NewFromInt(-1),
		Unit:  enums.ProductUnitEach,
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListFiltersInactiveAndSorts(t *testing.T) {
	svc, _, conn := newTestService(t, nil)

	seed := []models.Product{
		{ID: "1", Name: "Zucchini", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitPound, Category: "Vegetables", Active: true},
		{ID: "2", Name: "Apples", Price: decimal.NewFromInt(2), Unit: enums.ProductUnitPound, Category: "Fruit", Active: true},
		{ID: "3", Name: "Basil", Price: decimal.NewFromInt(3), Unit: enums.ProductUnitEach, Category: "Fruit", Active: false},
	}
	require.NoError(t, conn.Create(&seed).Error)

	active, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "Apples", active[0].Name)
	require.Equal(t, "Zucchini", active[1].Name)

	all, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestCategoriesDistinctSorted(t *testing.T) {
	svc, _, conn := newTestService(t, nil)

	seed := []models.Product{
		{ID: "1", Name: "A", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "Vegetables", Active: true},
		{ID: "2", Name: "B", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "Bakery", Active: true},
		{ID: "3", Name: "C", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "Vegetables", Active: true},
	}
	require.NoError(t, conn.Create(&seed).Error)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Bakery", "Vegetables"}, categories)
}

func TestDeleteProduct(t *testing.T) {
	svc, ob, conn := newTestService(t, nil)
	require.NoError(t, conn.Create(&models.Product{
		ID: "p1", Name: "Kale", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	require.NoError(t, svc.DeleteProduct(context.Background(), "p1"))
	require.Len(t, ob.events, 1)
	require.Equal(t, enums.EventProductDeleted, ob.events[0].EventType)

	err := svc.DeleteProduct(context.Background(), "p1")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestReplaceAllSwapsSetAndEmitsOnce(t *testing.T) {
	svc, ob, conn := newTestService(t, nil)
	require.NoError(t, conn.Create(&models.Product{
		ID: "old", Name: "Old", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	products, err := svc.ReplaceAll(context.Background(), []ProductInput{
		input("Corn", "0.75", enums.ProductUnitEach, "Vegetables"),
		input("Apples", "3.25", enums.ProductUnitPound, "Fruit"),
	})
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.NotEmpty(t, products[0].ID)

	listed, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, p := range listed {
		require.NotEqual(t, "old", p.ID)
	}

	require.Len(t, ob.events, 1)
	require.Equal(t, enums.EventCatalogReplaced, ob.events[0].EventType)
}

func TestReplaceAllRejectsBadRowAtomically(t *testing.T) {
	svc, ob, conn := newTestService(t, nil)
	require.NoError(t, conn.Create(&models.Product{
		ID: "keep", Name: "Keep", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	_, err := svc.ReplaceAll(context.Background(), []ProductInput{
		input("Fine", "1.00", enums.ProductUnitEach, ""),
		{Name: "Broken", Price: decimal.NewFromInt(1), Unit: enums.ProductUnit("crate")},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	require.Empty(t, ob.events)

	listed, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "keep", listed[0].ID)
}

func TestClearAllLocalOnly(t *testing.T) {
	svc, _, conn := newTestService(t, nil)
	require.NoError(t, conn.Create(&models.Product{
		ID: "p1", Name: "Kale", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	require.NoError(t, svc.ClearAll(context.Background()))

	listed, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestClearAllKeepsLocalWhenRemoteFails(t *testing.T) {
	remote := &stubRemote{clearErr: errors.New("mirror down")}
	svc, _, conn := newTestService(t, remote)
	require.NoError(t, conn.Create(&models.Product{
		ID: "p1", Name: "Kale", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	err := svc.ClearAll(context.Background())
	requireCode(t, err, pkgerrors.CodeDependency)

	listed, listErr := svc.List(context.Background(), true)
	require.NoError(t, listErr)
	require.Len(t, listed, 1)
}

func TestClearAllTreatsUnconfiguredMirrorAsLocal(t *testing.T) {
	remote := &stubRemote{clearErr: mirror.ErrUnconfigured}
	svc, _, conn := newTestService(t, remote)
	require.NoError(t, conn.Create(&models.Product{
		ID: "p1", Name: "Kale", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	require.NoError(t, svc.ClearAll(context.Background()))
}

func TestRefreshFromMirrorReplacesLocalSet(t *testing.T) {
	remote := &stubRemote{products: []mirror.ProductDoc{
		{ID: "r1", Name: "Remote Corn", Price: "0.75", Unit: "each", Category: "Vegetables", Active: true},
	}}
	svc, _, conn := newTestService(t, remote)
	require.NoError(t, conn.Create(&models.Product{
		ID: "local", Name: "Stale", Price: decimal.NewFromInt(1), Unit: enums.ProductUnitEach, Category: "X", Active: true,
	}).Error)

	require.NoError(t, svc.RefreshFromMirror(context.Background()))

	listed, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "r1", listed[0].ID)
	require.Equal(t, "0.75", listed[0].Price.StringFixed(2))
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded, "expected coded error, got %v", err)
	require.Equal(t, code, coded.Code())
}

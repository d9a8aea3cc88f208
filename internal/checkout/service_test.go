package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/urbanoasis/farmstand-backend/internal/cart"
	"github.com/urbanoasis/farmstand-backend/internal/ledger"
	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

type stubCarts struct {
	mu       sync.Mutex
	view     *cart.View
	cleared  int
	restored [][]models.CartItem
}

func (s *stubCarts) Get(context.Context, uuid.UUID) (*cart.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, nil
}

func (s *stubCarts) Clear(context.Context, uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return nil
}

func (s *stubCarts) RestoreItems(_ context.Context, _ uuid.UUID, items []models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = append(s.restored, items)
	return nil
}

type stubLedger struct {
	mu      sync.Mutex
	created []ledger.CreateOrderInput
	deleted []string
}

func (s *stubLedger) CreateOrder(_ context.Context, input ledger.CreateOrderInput) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, input)
	return &models.Order{
		ID:            uuid.NewString(),
		PaymentMethod: input.PaymentMethod,
		Discount:      input.Discount,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (s *stubLedger) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func cartView(items ...models.CartItem) *cart.View {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	return &cart.View{
		Record:    &models.CartRecord{ID: uuid.New(), DiscountType: enums.DiscountTypeNone},
		Items:     items,
		Subtotal:  subtotal,
		Total:     subtotal,
		ItemCount: len(items),
	}
}

func cartLine(name string, price, qty string) models.CartItem {
	p := decimal.RequireFromString(price)
	q := decimal.RequireFromString(qty)
	return models.CartItem{
		ID:        uuid.New(),
		Name:      name,
		Price:     p,
		Unit:      enums.ProductUnitEach,
		Quantity:  q,
		LineTotal: p.Mul(q),
	}
}

func newTestService(t *testing.T, carts cartStore, orders orderLedger, window time.Duration) Service {
	t.Helper()
	svc, err := NewService(carts, orders, config.CheckoutConfig{
		UndoWindow: window,
		UndoTick:   time.Millisecond,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	carts := &stubCarts{view: cartView(cartLine("Corn", "0.75", "2"))}
	orders := &stubLedger{}
	svc := newTestService(t, carts, orders, time.Minute)
	deviceID := uuid.New()

	receipt, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)
	require.NotNil(t, receipt.Order)
	require.True(t, receipt.UndoDeadline.After(time.Now()))

	require.Equal(t, 1, carts.cleared)
	require.Len(t, orders.created, 1)
	require.Len(t, orders.created[0].Items, 1)
	require.Equal(t, "Corn", orders.created[0].Items[0].Name)

	status := svc.Status(deviceID)
	require.Equal(t, StateAwaitingUndo, status.State)
	require.Equal(t, receipt.Order.ID, status.OrderID)
	require.Positive(t, status.RemainingMs)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	carts := &stubCarts{view: cartView()}
	svc := newTestService(t, carts, &stubLedger{}, time.Minute)

	_, err := svc.Checkout(context.Background(), uuid.New(), enums.PaymentMethodCash, "volunteer")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCheckoutCarriesDiscountSnapshot(t *testing.T) {
	view := cartView(cartLine("Honey", "12.00", "1"))
	view.Record.DiscountType = enums.DiscountTypePercentage
	view.Record.DiscountValue = decimal.NewFromInt(10)
	view.DiscountAmount = decimal.RequireFromString("1.20")
	carts := &stubCarts{view: view}
	orders := &stubLedger{}
	svc := newTestService(t, carts, orders, time.Minute)

	_, err := svc.Checkout(context.Background(), uuid.New(), enums.PaymentMethodCard, "volunteer")
	require.NoError(t, err)

	require.Len(t, orders.created, 1)
	require.NotNil(t, orders.created[0].Discount)
	require.Equal(t, enums.DiscountTypePercentage, orders.created[0].Discount.Type)
	require.Equal(t, "1.20", orders.created[0].Discount.Amount.StringFixed(2))
}

func TestSecondCheckoutDuringUndoWindowRejected(t *testing.T) {
	carts := &stubCarts{view: cartView(cartLine("Corn", "0.75", "1"))}
	svc := newTestService(t, carts, &stubLedger{}, time.Minute)
	deviceID := uuid.New()

	_, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	// A different station is unaffected.
	_, err = svc.Checkout(context.Background(), uuid.New(), enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)
}

// gateCarts parks the first Get until released, holding a checkout
// mid-flight so a racing second checkout can be observed.
type gateCarts struct {
	view    *cart.View
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateCarts) Get(context.Context, uuid.UUID) (*cart.View, error) {
	g.once.Do(func() {
		g.entered <- struct{}{}
		<-g.release
	})
	return g.view, nil
}

func (g *gateCarts) Clear(context.Context, uuid.UUID) error { return nil }

func (g *gateCarts) RestoreItems(context.Context, uuid.UUID, []models.CartItem) error {
	return nil
}

func TestConcurrentCheckoutsOnOneDeviceRejected(t *testing.T) {
	carts := &gateCarts{
		view:    cartView(cartLine("Corn", "0.75", "1")),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	orders := &stubLedger{}
	svc := newTestService(t, carts, orders, time.Minute)
	deviceID := uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
		done <- err
	}()
	<-carts.entered

	// The device is reserved while the first checkout is still in flight.
	_, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	close(carts.release)
	require.NoError(t, <-done)
	require.Len(t, orders.created, 1)
}

func TestUndoDeletesOrderAndRestoresItems(t *testing.T) {
	line := cartLine("Tomatoes", "2.50", "1.5")
	carts := &stubCarts{view: cartView(line)}
	orders := &stubLedger{}
	svc := newTestService(t, carts, orders, time.Minute)
	deviceID := uuid.New()

	receipt, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)

	order, err := svc.Undo(context.Background(), deviceID)
	require.NoError(t, err)
	require.Equal(t, receipt.Order.ID, order.ID)

	require.Equal(t, []string{receipt.Order.ID}, orders.deleted)
	require.Len(t, carts.restored, 1)
	require.Len(t, carts.restored[0], 1)
	require.Equal(t, line.ID, carts.restored[0][0].ID)

	require.Equal(t, StateReverted, svc.Status(deviceID).State)

	// A second undo has nothing to act on.
	_, err = svc.Undo(context.Background(), deviceID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUndoAfterWindowExpiresRejected(t *testing.T) {
	carts := &stubCarts{view: cartView(cartLine("Corn", "0.75", "1"))}
	orders := &stubLedger{}
	svc := newTestService(t, carts, orders, 10*time.Millisecond)
	deviceID := uuid.New()

	_, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.Status(deviceID).State == StateFinalized
	}, time.Second, time.Millisecond)

	_, err = svc.Undo(context.Background(), deviceID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Empty(t, orders.deleted)
	require.Empty(t, carts.restored)
}

func TestCheckoutAllowedAfterFinalize(t *testing.T) {
	carts := &stubCarts{view: cartView(cartLine("Corn", "0.75", "1"))}
	svc := newTestService(t, carts, &stubLedger{}, 10*time.Millisecond)
	deviceID := uuid.New()

	_, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.Status(deviceID).State == StateFinalized
	}, time.Second, time.Millisecond)

	_, err = svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingUndo, svc.Status(deviceID).State)
}

func TestCloseFinalizesOpenWindows(t *testing.T) {
	carts := &stubCarts{view: cartView(cartLine("Corn", "0.75", "1"))}
	svc := newTestService(t, carts, &stubLedger{}, time.Minute)
	deviceID := uuid.New()

	_, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)

	svc.Close()
	require.Equal(t, StateFinalized, svc.Status(deviceID).State)

	_, err = svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestReceipt(t *testing.T) {
	carts := &stubCarts{view: cartView(cartLine("Corn", "0.75", "1"))}
	svc := newTestService(t, carts, &stubLedger{}, time.Minute)
	deviceID := uuid.New()

	_, err := svc.Receipt(deviceID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	checkout, err := svc.Checkout(context.Background(), deviceID, enums.PaymentMethodCash, "volunteer")
	require.NoError(t, err)

	receipt, err := svc.Receipt(deviceID)
	require.NoError(t, err)
	require.Equal(t, checkout.Order.ID, receipt.Order.ID)

	// A reverted sale no longer has a receipt.
	_, err = svc.Undo(context.Background(), deviceID)
	require.NoError(t, err)
	_, err = svc.Receipt(deviceID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestStatusIdleForUnknownDevice(t *testing.T) {
	svc := newTestService(t, &stubCarts{view: cartView()}, &stubLedger{}, time.Minute)
	require.Equal(t, StateIdle, svc.Status(uuid.New()).State)
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded, "expected coded error, got %v", err)
	require.Equal(t, code, coded.Code())
}

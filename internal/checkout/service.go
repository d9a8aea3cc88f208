package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/internal/cart"
	"github.com/urbanoasis/farmstand-backend/internal/ledger"
	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// State is where a station's checkout currently sits. A checkout is
// reversible only while awaiting undo; expiry finalizes it exactly once.
type State string

const (
	StateIdle         State = "idle"
	StateAwaitingUndo State = "awaiting_undo"
	StateFinalized    State = "finalized"
	StateReverted     State = "reverted"
)

// Receipt is what the register shows after a completed checkout.
type Receipt struct {
	Order        *models.Order `json:"order"`
	UndoDeadline time.Time     `json:"undoDeadline"`
}

// Status reports the undo countdown for a station.
type Status struct {
	State       State  `json:"state"`
	OrderID     string `json:"orderId,omitempty"`
	RemainingMs int64  `json:"remainingMs"`
}

type cartStore interface {
	Get(ctx context.Context, deviceID uuid.UUID) (*cart.View, error)
	Clear(ctx context.Context, deviceID uuid.UUID) error
	RestoreItems(ctx context.Context, deviceID uuid.UUID, items []models.CartItem) error
}

type orderLedger interface {
	CreateOrder(ctx context.Context, input ledger.CreateOrderInput) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// Service drives the checkout flow and its undo window.
type Service interface {
	Checkout(ctx context.Context, deviceID uuid.UUID, payment enums.PaymentMethod, createdBy string) (*Receipt, error)
	Undo(ctx context.Context, deviceID uuid.UUID) (*models.Order, error)
	Status(deviceID uuid.UUID) Status
	Receipt(deviceID uuid.UUID) (*Receipt, error)
	Close()
}

// session is the per-station undo window. Items are the cart snapshot taken
// before clearing, kept so undo can put the register back where it was.
type session struct {
	state    State
	order    *models.Order
	items    []models.CartItem
	deadline time.Time
	done     chan struct{}
}

type service struct {
	carts  cartStore
	orders orderLedger
	cfg    config.CheckoutConfig
	logg   *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	inflight map[uuid.UUID]bool
	wg       sync.WaitGroup
	closed   bool
}

// NewService wires the checkout service. The undo window and tick come from
// configuration so tests can shrink them.
func NewService(carts cartStore, orders orderLedger, cfg config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if orders == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = 5 * time.Second
	}
	if cfg.UndoTick <= 0 {
		cfg.UndoTick = 100 * time.Millisecond
	}
	return &service{
		carts:    carts,
		orders:   orders,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
		inflight: make(map[uuid.UUID]bool),
	}, nil
}

func (s *service) Checkout(ctx context.Context, deviceID uuid.UUID, payment enums.PaymentMethod, createdBy string) (*Receipt, error) {
	if deviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout service shutting down")
	}
	if sess, ok := s.sessions[deviceID]; ok && sess.state == StateAwaitingUndo {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "previous sale is still within its undo window")
	}
	// The reservation holds the device from the state check until the
	// session is installed, so a second checkout cannot slip in between.
	if s.inflight[deviceID] {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already in progress")
	}
	s.inflight[deviceID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, deviceID)
		s.mu.Unlock()
	}()

	view, err := s.carts.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	order, err := s.orders.CreateOrder(ctx, orderInputFromCart(view, payment, createdBy))
	if err != nil {
		return nil, err
	}

	// Snapshot before clearing so undo can restore the exact lines.
	snapshot := make([]models.CartItem, len(view.Items))
	copy(snapshot, view.Items)

	if err := s.carts.Clear(ctx, deviceID); err != nil {
		// The sale is recorded; a cart that failed to clear is recoverable
		// by the volunteer, so log and keep going.
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "cart clear after checkout failed", err)
		}
	}

	deadline := s.now().Add(s.cfg.UndoWindow)
	sess := &session{
		state:    StateAwaitingUndo,
		order:    order,
		items:    snapshot,
		deadline: deadline,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[deviceID] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	go s.watchExpiry(deviceID, sess)

	return &Receipt{Order: order, UndoDeadline: deadline}, nil
}

// watchExpiry polls the deadline so the countdown survives clock reads from
// Status without a second timer. First transition out of awaiting wins.
func (s *service) watchExpiry(deviceID uuid.UUID, sess *session) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.UndoTick)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if sess.state != StateAwaitingUndo {
				s.mu.Unlock()
				return
			}
			if !s.now().Before(sess.deadline) {
				sess.state = StateFinalized
				close(sess.done)
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}
}

func (s *service) Undo(ctx context.Context, deviceID uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	sess, ok := s.sessions[deviceID]
	if !ok || sess.state == StateIdle {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no sale to undo")
	}
	if sess.state != StateAwaitingUndo || !s.now().Before(sess.deadline) {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "undo window has closed")
	}
	sess.state = StateReverted
	close(sess.done)
	order := sess.order
	items := sess.items
	s.mu.Unlock()

	if err := s.orders.DeleteOrder(ctx, order.ID); err != nil {
		return nil, err
	}
	// The discount is deliberately not restored; the volunteer re-applies
	// it if the sale is retried.
	if err := s.carts.RestoreItems(ctx, deviceID, items); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Status(deviceID uuid.UUID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok {
		return Status{State: StateIdle}
	}
	status := Status{State: sess.state, OrderID: sess.order.ID}
	if sess.state == StateAwaitingUndo {
		if remaining := sess.deadline.Sub(s.now()); remaining > 0 {
			status.RemainingMs = remaining.Milliseconds()
		}
	}
	return status
}

// Receipt returns the most recent sale for the station, reverted ones
// excluded.
func (s *service) Receipt(deviceID uuid.UUID) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok || sess.state == StateReverted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no receipt available")
	}
	return &Receipt{Order: sess.order, UndoDeadline: sess.deadline}, nil
}

// Close stops every countdown watcher. Open undo windows finalize: shutdown
// must never resurrect a cart.
func (s *service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, sess := range s.sessions {
		if sess.state == StateAwaitingUndo {
			sess.state = StateFinalized
			close(sess.done)
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func orderInputFromCart(view *cart.View, payment enums.PaymentMethod, createdBy string) ledger.CreateOrderInput {
	items := make([]ledger.OrderItemInput, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, ledger.OrderItemInput{
			Name:     item.Name,
			Price:    item.Price,
			Unit:     item.Unit,
			Quantity: item.Quantity,
		})
	}

	input := ledger.CreateOrderInput{
		Items:         items,
		PaymentMethod: payment,
		CreatedBy:     createdBy,
	}
	if view.Record != nil && view.Record.DiscountType != enums.DiscountTypeNone && view.DiscountAmount.GreaterThan(decimal.Zero) {
		input.Discount = &models.DiscountSnapshot{
			Type:   view.Record.DiscountType,
			Value:  view.Record.DiscountValue,
			Label:  view.Record.DiscountLabel,
			Amount: view.DiscountAmount,
		}
	}
	return input
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/money"
	"github.com/urbanoasis/farmstand-backend/pkg/pagination"
)

// deleteChunkSize caps how many remote deletes ride one batch.
const deleteChunkSize = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// remoteLedger is the slice of the mirror the ledger talks to: order writes
// plus the range read that pulls peer stations' sales into the day view.
type remoteLedger interface {
	PutOrder(ctx context.Context, doc mirror.OrderDoc) error
	DeleteOrder(ctx context.Context, id string) error
	OrdersBetween(ctx context.Context, from, to time.Time) ([]mirror.OrderDoc, error)
}

// OrderItemInput is one decoupled line snapshot for a new order.
type OrderItemInput struct {
	Name     string
	Price    decimal.Decimal
	Unit     enums.ProductUnit
	Quantity decimal.Decimal
}

// CreateOrderInput carries everything needed to record a sale.
type CreateOrderInput struct {
	Items         []OrderItemInput
	Discount      *models.DiscountSnapshot
	PaymentMethod enums.PaymentMethod
	CreatedBy     string
}

// Page is one page of a date-range order query.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// Service defines ledger operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	DeleteOrders(ctx context.Context, ids []string) error
	OrdersByDateRange(ctx context.Context, start, end time.Time, params pagination.Params) (*Page, error)
	OrdersBetween(ctx context.Context, start, end time.Time) ([]models.Order, error)
	TodaysOrders(ctx context.Context) ([]models.Order, error)
	TodayTotal(ctx context.Context) (decimal.Decimal, error)
	TodayOrderCount(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int64, error)
	SyncPendingOrders(ctx context.Context) (int, error)
	RefreshFromMirror(ctx context.Context) error
}

type service struct {
	repo   Repository
	tx     txRunner
	remote remoteLedger
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires a ledger service. remote may be nil when no mirror is
// configured; orders then simply stay pending.
func NewService(repo Repository, tx txRunner, remote remoteLedger, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		remote: remote,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be cash, card, or voucher")
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for i, line := range input.Items {
		if line.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required").
				WithDetails(map[string]any{"index": i})
		}
		if !line.Unit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit must be lb or each").
				WithDetails(map[string]any{"index": i})
		}
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"index": i})
		}
		if line.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative").
				WithDetails(map[string]any{"index": i})
		}
		lineTotal := money.LineTotal(line.Price, line.Quantity)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			Name:      line.Name,
			Price:     money.Round2(line.Price),
			Unit:      line.Unit,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
			Position:  i,
		})
	}
	subtotal = money.Round2(subtotal)

	discountAmount := decimal.Zero
	if input.Discount != nil {
		discountAmount = input.Discount.Amount
	}

	order := &models.Order{
		ID:            newOrderID(),
		Subtotal:      subtotal,
		Discount:      input.Discount,
		Total:         money.Total(subtotal, discountAmount),
		PaymentMethod: input.PaymentMethod,
		CreatedAt:     s.now().UTC(),
		CreatedBy:     input.CreatedBy,
		Synced:        false,
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = items

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID)
		s.logg.Info(s.logg.WithField(logCtx, "total", money.FormatUSD(order.Total)), "order recorded")
	}

	// Remote write is best effort: a sale must never fail because the
	// mirror is unreachable.
	if s.remote != nil {
		if remoteErr := s.remote.PutOrder(ctx, DocFromOrder(*order)); remoteErr == nil {
			if err := s.repo.MarkSynced(ctx, order.ID); err == nil {
				order.Synced = true
			}
		} else if !errors.Is(remoteErr, mirror.ErrUnconfigured) {
			s.warn(ctx, order.ID, "order queued for sync, remote write failed", remoteErr)
		}
	}
	return order, nil
}

func (s *service) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) DeleteOrder(ctx context.Context, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		affected, err = s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	if s.remote != nil {
		if remoteErr := s.remote.DeleteOrder(ctx, id); remoteErr != nil && !errors.Is(remoteErr, mirror.ErrUnconfigured) {
			s.warn(ctx, id, "remote order delete failed", remoteErr)
		}
	}
	return nil
}

// DeleteOrders removes a batch of orders. Local deletes are authoritative;
// remote failures are aggregated and logged, never surfaced, because the
// admin's local view already moved on.
func (s *service) DeleteOrders(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := s.repo.WithTx(tx).Delete(ctx, id)
			return err
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete orders")
		}
	}

	if s.remote == nil {
		return nil
	}
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		var chunkErr error
		for _, id := range ids[start:end] {
			if err := s.remote.DeleteOrder(ctx, id); err != nil && !errors.Is(err, mirror.ErrUnconfigured) {
				chunkErr = multierr.Append(chunkErr, err)
			}
		}
		if chunkErr != nil {
			s.warn(ctx, "", "remote batch order delete failed", chunkErr)
		}
	}
	return nil
}

func (s *service) OrdersByDateRange(ctx context.Context, start, end time.Time, params pagination.Params) (*Page, error) {
	if end.Before(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end must not precede start")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	orders, err := s.repo.ListByDateRange(ctx, start, end, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query orders")
	}

	page := &Page{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) OrdersBetween(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	orders, err := s.repo.ListAllBetween(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query orders")
	}
	return orders, nil
}

func (s *service) TodaysOrders(ctx context.Context) ([]models.Order, error) {
	start, end := dayBounds(s.now())
	orders, err := s.repo.ListByDateRange(ctx, start, end, pagination.MaxLimit, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query today's orders")
	}
	return orders, nil
}

func (s *service) TodayTotal(ctx context.Context) (decimal.Decimal, error) {
	start, end := dayBounds(s.now())
	orders, err := s.repo.ListAllBetween(ctx, start, end)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum today's orders")
	}
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(order.Total)
	}
	return money.Round2(total), nil
}

func (s *service) TodayOrderCount(ctx context.Context) (int64, error) {
	start, end := dayBounds(s.now())
	count, err := s.repo.CountBetween(ctx, start, end)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count today's orders")
	}
	return count, nil
}

func (s *service) PendingCount(ctx context.Context) (int64, error) {
	count, err := s.repo.CountPending(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending orders")
	}
	return count, nil
}

// SyncPendingOrders pushes every unsynced order to the mirror. Re-running
// with nothing new is a no-op: successful orders flip synced and drop out
// of the pending set, and remote writes are keyed by order id.
func (s *service) SyncPendingOrders(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, nil
	}
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders")
	}

	synced := 0
	for _, order := range pending {
		if err := s.remote.PutOrder(ctx, DocFromOrder(order)); err != nil {
			if errors.Is(err, mirror.ErrUnconfigured) {
				return synced, nil
			}
			s.warn(ctx, order.ID, "pending order sync failed", err)
			continue
		}
		if err := s.repo.MarkSynced(ctx, order.ID); err != nil {
			return synced, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag synced order")
		}
		synced++
	}
	return synced, nil
}

// RefreshFromMirror pulls today's remote orders so sales recorded by peer
// stations show up in the local day view. Existing rows always win; a remote
// doc never overwrites an order this station already holds.
func (s *service) RefreshFromMirror(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	start, end := dayBounds(s.now())
	docs, err := s.remote.OrdersBetween(ctx, start, end)
	if err != nil {
		if errors.Is(err, mirror.ErrUnconfigured) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read remote orders")
	}

	for _, doc := range docs {
		order, err := orderFromDoc(doc)
		if err != nil {
			return err
		}
		if _, err := s.repo.CreateIfAbsent(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store peer order")
		}
	}
	return nil
}

func (s *service) warn(ctx context.Context, orderID, msg string, err error) {
	if s.logg == nil {
		return
	}
	if orderID != "" {
		ctx = s.logg.WithOrderID(ctx, orderID)
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func newOrderID() string {
	return uuid.NewString()
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	local := now.Local()
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return start, start.Add(24*time.Hour - time.Nanosecond)
}

// DocFromOrder converts a ledger row into its mirrored document form.
func DocFromOrder(order models.Order) mirror.OrderDoc {
	items := make([]mirror.OrderItemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, mirror.OrderItemDoc{
			Name:      item.Name,
			Price:     item.Price.StringFixed(2),
			Unit:      string(item.Unit),
			Quantity:  item.Quantity.String(),
			LineTotal: item.LineTotal.StringFixed(2),
		})
	}
	doc := mirror.OrderDoc{
		ID:            order.ID,
		Items:         items,
		Subtotal:      order.Subtotal.StringFixed(2),
		Total:         order.Total.StringFixed(2),
		PaymentMethod: string(order.PaymentMethod),
		CreatedAt:     order.CreatedAt,
		CreatedBy:     order.CreatedBy,
	}
	if order.Discount != nil {
		doc.Discount = &mirror.DiscountDoc{
			Type:   string(order.Discount.Type),
			Value:  order.Discount.Value.String(),
			Label:  order.Discount.Label,
			Amount: order.Discount.Amount.StringFixed(2),
		}
	}
	return doc
}

// orderFromDoc rebuilds a ledger row from its mirrored document. The row is
// marked synced: it came from the remote, so it is already there.
func orderFromDoc(doc mirror.OrderDoc) (models.Order, error) {
	subtotal, err := decimal.NewFromString(doc.Subtotal)
	if err != nil {
		return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored subtotal")
	}
	total, err := decimal.NewFromString(doc.Total)
	if err != nil {
		return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored total")
	}
	payment, err := enums.ParsePaymentMethod(doc.PaymentMethod)
	if err != nil {
		return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored payment method")
	}

	items := make([]models.OrderItem, 0, len(doc.Items))
	for i, line := range doc.Items {
		price, err := decimal.NewFromString(line.Price)
		if err != nil {
			return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored item price")
		}
		quantity, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored item quantity")
		}
		lineTotal, err := decimal.NewFromString(line.LineTotal)
		if err != nil {
			return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored line total")
		}
		unit, err := enums.ParseProductUnit(line.Unit)
		if err != nil {
			return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored item unit")
		}
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   doc.ID,
			Name:      line.Name,
			Price:     price,
			Unit:      unit,
			Quantity:  quantity,
			LineTotal: lineTotal,
			Position:  i,
		})
	}

	order := models.Order{
		ID:            doc.ID,
		Subtotal:      subtotal,
		Total:         total,
		PaymentMethod: payment,
		CreatedAt:     doc.CreatedAt,
		CreatedBy:     doc.CreatedBy,
		Synced:        true,
		Items:         items,
	}
	if doc.Discount != nil {
		value, err := decimal.NewFromString(doc.Discount.Value)
		if err != nil {
			return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored discount value")
		}
		amount, err := decimal.NewFromString(doc.Discount.Amount)
		if err != nil {
			return models.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored discount amount")
		}
		order.Discount = &models.DiscountSnapshot{
			Type:   enums.DiscountType(doc.Discount.Type),
			Value:  value,
			Label:  doc.Discount.Label,
			Amount: amount,
		}
	}
	return order, nil
}

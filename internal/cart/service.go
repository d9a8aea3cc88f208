package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddItemInput snapshots the product fields at add time.
type AddItemInput struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Unit      enums.ProductUnit
	Quantity  decimal.Decimal
}

// DiscountInput carries a discount to apply. Applying overwrites any
// existing discount; discounts never stack.
type DiscountInput struct {
	Type  enums.DiscountType
	Value decimal.Decimal
	Label string
}

// View is the computed state of the open cart.
type View struct {
	Record         *models.CartRecord `json:"cart"`
	Items          []models.CartItem  `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DiscountAmount decimal.Decimal    `json:"discountAmount"`
	Total          decimal.Decimal    `json:"total"`
	ItemCount      int                `json:"itemCount"`
}

// Service defines the open-cart operations for a station.
type Service interface {
	Get(ctx context.Context, deviceID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, deviceID uuid.UUID, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, deviceID, itemID uuid.UUID, quantity decimal.Decimal) (*View, error)
	RemoveItem(ctx context.Context, deviceID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, deviceID uuid.UUID) error
	RestoreItems(ctx context.Context, deviceID uuid.UUID, items []models.CartItem) error
	ApplyDiscount(ctx context.Context, deviceID uuid.UUID, input DiscountInput) (*View, error)
	RemoveDiscount(ctx context.Context, deviceID uuid.UUID) (*View, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires a cart service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, deviceID uuid.UUID) (*View, error) {
	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return buildView(record), nil
}

func (s *service) AddItem(ctx context.Context, deviceID uuid.UUID, input AddItemInput) (*View, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit must be lb or each")
	}
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	position, err := s.repo.MaxPosition(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart position")
	}

	// Every add yields a distinct line, even for the same product.
	item := &models.CartItem{
		ID:        uuid.New(),
		CartID:    record.ID,
		ProductID: input.ProductID,
		Name:      input.Name,
		Price:     money.Round2(input.Price),
		Unit:      input.Unit,
		Quantity:  input.Quantity,
		LineTotal: money.LineTotal(input.Price, input.Quantity),
		Position:  position + 1,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	return s.Get(ctx, deviceID)
}

func (s *service) UpdateItem(ctx context.Context, deviceID, itemID uuid.UUID, quantity decimal.Decimal) (*View, error) {
	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	item := findItem(record.Items, itemID)
	if item == nil {
		// Unknown ids are ignored so a stale UI cannot fail a sale.
		return buildView(record), nil
	}

	if quantity.LessThanOrEqual(decimal.Zero) {
		return s.RemoveItem(ctx, deviceID, itemID)
	}

	lineTotal := money.LineTotal(item.Price, quantity)
	if err := s.repo.UpdateItemQuantity(ctx, itemID, quantity, lineTotal); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.Get(ctx, deviceID)
}

func (s *service) RemoveItem(ctx context.Context, deviceID, itemID uuid.UUID) (*View, error) {
	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, record.ID, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.Get(ctx, deviceID)
}

func (s *service) Clear(ctx context.Context, deviceID uuid.UUID) error {
	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		if err := repo.UpdateDiscount(ctx, record.ID, discountResetUpdates()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart discount")
		}
		return nil
	})
}

func (s *service) RestoreItems(ctx context.Context, deviceID uuid.UUID, items []models.CartItem) error {
	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return err
	}
	restored := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		item.CartID = record.ID
		restored = append(restored, item)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ReplaceItems(ctx, record.ID, restored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore cart items")
		}
		return nil
	})
}

func (s *service) ApplyDiscount(ctx context.Context, deviceID uuid.UUID, input DiscountInput) (*View, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount type must be none, percentage, or fixed")
	}
	if input.Type == enums.DiscountTypePercentage && input.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if input.Value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value cannot be negative")
	}

	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{
		"discount_type":  input.Type,
		"discount_value": input.Value,
		"discount_label": input.Label,
	}
	if err := s.repo.UpdateDiscount(ctx, record.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply discount")
	}
	return s.Get(ctx, deviceID)
}

func (s *service) RemoveDiscount(ctx context.Context, deviceID uuid.UUID) (*View, error) {
	record, err := s.ensureRecord(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDiscount(ctx, record.ID, discountResetUpdates()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove discount")
	}
	return s.Get(ctx, deviceID)
}

func (s *service) ensureRecord(ctx context.Context, deviceID uuid.UUID) (*models.CartRecord, error) {
	if deviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}
	record, err := s.repo.FindByDevice(ctx, deviceID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	fresh := &models.CartRecord{
		ID:           uuid.New(),
		DeviceID:     deviceID,
		DiscountType: enums.DiscountTypeNone,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		if existing, readErr := s.repo.FindByDevice(ctx, deviceID); readErr == nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return fresh, nil
}

// DiscountAmount resolves the discount against a subtotal. Zero when no
// discount is set or the value is not positive.
func DiscountAmount(record *models.CartRecord, subtotal decimal.Decimal) decimal.Decimal {
	if record == nil || record.DiscountValue.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	switch record.DiscountType {
	case enums.DiscountTypePercentage:
		return money.PercentOf(subtotal, record.DiscountValue)
	case enums.DiscountTypeFixed:
		return money.ClampToSubtotal(subtotal, money.Round2(record.DiscountValue))
	default:
		return decimal.Zero
	}
}

func buildView(record *models.CartRecord) *View {
	subtotal := decimal.Zero
	for _, item := range record.Items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	subtotal = money.Round2(subtotal)
	discount := DiscountAmount(record, subtotal)
	return &View{
		Record:         record,
		Items:          record.Items,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          money.Total(subtotal, discount),
		ItemCount:      len(record.Items),
	}
}

func findItem(items []models.CartItem, id uuid.UUID) *models.CartItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func discountResetUpdates() map[string]any {
	return map[string]any{
		"discount_type":  enums.DiscountTypeNone,
		"discount_value": decimal.Zero,
		"discount_label": "",
	}
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/money"
	"github.com/urbanoasis/farmstand-backend/pkg/outbox"
)

// DefaultCategory buckets products uploaded without one.
const DefaultCategory = "Other"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// remoteCatalog is the slice of the mirror the catalog needs directly:
// the synchronous clear-all path and subscription refresh reads.
type remoteCatalog interface {
	ClearProducts(ctx context.Context) error
	Products(ctx context.Context) ([]mirror.ProductDoc, error)
}

// ProductInput carries one product write.
type ProductInput struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Unit     enums.ProductUnit
	Category string
	Active   *bool
}

// Service defines catalog operations.
type Service interface {
	List(ctx context.Context, includeInactive bool) ([]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	AddProduct(ctx context.Context, input ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, inputs []ProductInput) ([]models.Product, error)
	ClearAll(ctx context.Context) error
	RefreshFromMirror(ctx context.Context) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	remote remoteCatalog
}

// NewService wires a catalog service. remote may be nil for stations with no
// mirror configured.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, remote remoteCatalog) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, remote: remote}, nil
}

func (s *service) List(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	products, err := s.repo.List(ctx, !includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) AddProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	product, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductAdded,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Data:          DocFromProduct(*product),
		})
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) DeleteProduct(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductDeleted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   id,
			Data:          mirror.ProductDoc{ID: id},
		})
	})
}

func (s *service) ReplaceAll(ctx context.Context, inputs []ProductInput) ([]models.Product, error) {
	products := make([]models.Product, 0, len(inputs))
	for i, input := range inputs {
		product, err := normalizeInput(input)
		if err != nil {
			if coded := pkgerrors.As(err); coded != nil {
				return nil, coded.WithDetails(map[string]any{"index": i})
			}
			return nil, err
		}
		products = append(products, *product)
	}

	docs := make([]mirror.ProductDoc, 0, len(products))
	for _, product := range products {
		docs = append(docs, DocFromProduct(product))
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear products for upload")
		}
		if err := repo.InsertBatch(ctx, products); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert uploaded products")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCatalogReplaced,
			AggregateType: enums.AggregateCatalog,
			AggregateID:   "catalog",
			Data:          docs,
		})
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ClearAll wipes the catalog. Unlike the other writes this one clears the
// remote synchronously: if the remote delete fails the local table is left
// untouched, so the admin sees one consistent outcome.
func (s *service) ClearAll(ctx context.Context) error {
	if s.remote != nil {
		if err := s.remote.ClearProducts(ctx); err != nil && !errors.Is(err, mirror.ErrUnconfigured) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear remote catalog")
		}
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear products")
		}
		return nil
	})
}

// RefreshFromMirror replaces the local product set with the remote one.
// No-op when no mirror is configured.
func (s *service) RefreshFromMirror(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	docs, err := s.remote.Products(ctx)
	if err != nil {
		if errors.Is(err, mirror.ErrUnconfigured) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read remote catalog")
	}

	products := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		product, err := productFromDoc(doc)
		if err != nil {
			return err
		}
		products = append(products, product)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset local catalog")
		}
		if err := repo.InsertBatch(ctx, products); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write refreshed catalog")
		}
		return nil
	})
}

func normalizeInput(input ProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit must be lb or each")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = DefaultCategory
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}

	return &models.Product{
		ID:       id,
		Name:     name,
		Price:    money.Round2(input.Price),
		Unit:     input.Unit,
		Category: category,
		Active:   active,
	}, nil
}

// DocFromProduct converts a local row into its mirrored document form.
func DocFromProduct(product models.Product) mirror.ProductDoc {
	updated := product.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return mirror.ProductDoc{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price.StringFixed(2),
		Unit:      string(product.Unit),
		Category:  product.Category,
		Active:    product.Active,
		UpdatedAt: updated,
	}
}

func productFromDoc(doc mirror.ProductDoc) (models.Product, error) {
	price, err := decimal.NewFromString(doc.Price)
	if err != nil {
		return models.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored price")
	}
	unit, err := enums.ParseProductUnit(doc.Unit)
	if err != nil {
		return models.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mirrored unit")
	}
	category := doc.Category
	if category == "" {
		category = DefaultCategory
	}
	return models.Product{
		ID:        doc.ID,
		Name:      doc.Name,
		Price:     price,
		Unit:      unit,
		Category:  category,
		Active:    doc.Active,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	catalogsvc "github.com/urbanoasis/farmstand-backend/internal/catalog"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// ListProducts returns the catalog. Inactive products only appear when the
// includeInactive query flag is set.
func ListProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.List(r.Context(), validators.ParseQueryBool(r, "includeInactive"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductCategories returns the distinct category names in use.
func ProductCategories(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

type productRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Unit     string          `json:"unit" validate:"required,oneof=lb each"`
	Category string          `json:"category"`
	Active   *bool           `json:"active,omitempty"`
}

func (p productRequest) toInput() (catalogsvc.ProductInput, error) {
	unit, err := enums.ParseProductUnit(p.Unit)
	if err != nil {
		return catalogsvc.ProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}
	return catalogsvc.ProductInput{
		Name:     p.Name,
		Price:    p.Price,
		Unit:     unit,
		Category: p.Category,
		Active:   p.Active,
	}, nil
}

// AdminCreateProduct adds one product to the catalog.
func AdminCreateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.AddProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminDeleteProduct removes one product.
func AdminDeleteProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "productId")
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id required"))
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminClearProducts wipes the catalog locally and remotely.
func AdminClearProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearAll(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

type uploadResponse struct {
	Imported  int                   `json:"imported"`
	RowErrors []catalogsvc.RowError `json:"rowErrors,omitempty"`
}

// AdminUploadProductsCSV replaces the whole catalog from an uploaded CSV.
// Any row error rejects the upload so a half-imported catalog never goes
// live.
func AdminUploadProductsCSV(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		inputs, rowErrors, err := catalogsvc.ParseProductsCSV(r.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(rowErrors) > 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "csv contains invalid rows").
					WithDetails(map[string]any{"rowErrors": rowErrors}))
			return
		}

		products, err := svc.ReplaceAll(r.Context(), inputs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, uploadResponse{Imported: len(products)})
	}
}

// AdminSampleCSV serves the upload template.
func AdminSampleCSV() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteCSV(w, "products-sample.csv", []byte(catalogsvc.SampleCSV()))
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	cartsvc "github.com/urbanoasis/farmstand-backend/internal/cart"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// GetCart returns the open cart for the station.
func GetCart(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type addItemRequest struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"required"`
	Unit      string          `json:"unit" validate:"required,oneof=lb each"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

// AddCartItem appends one line to the cart.
func AddCartItem(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unit, err := enums.ParseProductUnit(payload.Unit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit"))
			return
		}
		view, err := svc.AddItem(r.Context(), deviceID, cartsvc.AddItemInput{
			ProductID: payload.ProductID,
			Name:      payload.Name,
			Price:     payload.Price,
			Unit:      unit,
			Quantity:  payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type updateItemRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// UpdateCartItem changes a line's quantity; zero or less removes it.
func UpdateCartItem(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateItem(r.Context(), deviceID, itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// RemoveCartItem deletes one line from the cart.
func RemoveCartItem(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		view, err := svc.RemoveItem(r.Context(), deviceID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ClearCart empties the cart and drops its discount.
func ClearCart(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Clear(r.Context(), deviceID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type discountRequest struct {
	Type  string          `json:"type" validate:"required,oneof=percentage fixed"`
	Value decimal.Decimal `json:"value" validate:"required"`
	Label string          `json:"label"`
}

// ApplyCartDiscount sets the cart discount, replacing any existing one.
func ApplyCartDiscount(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discountType, err := enums.ParseDiscountType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		view, err := svc.ApplyDiscount(r.Context(), deviceID, cartsvc.DiscountInput{
			Type:  discountType,
			Value: payload.Value,
			Label: payload.Label,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// RemoveCartDiscount clears the cart discount.
func RemoveCartDiscount(svc cartsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.RemoveDiscount(r.Context(), deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	checkoutsvc "github.com/urbanoasis/farmstand-backend/internal/checkout"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cash card voucher"`
}

// Checkout records the sale and opens the undo window.
func Checkout(svc checkoutsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		receipt, err := svc.Checkout(r.Context(), deviceID, payment, deviceID.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

// UndoCheckout reverses the last sale while its window is open.
func UndoCheckout(svc checkoutsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.Undo(r.Context(), deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "reverted", "orderId": order.ID})
	}
}

// CheckoutStatus reports the undo countdown.
func CheckoutStatus(svc checkoutsvc.Service, deviceID uuid.UUID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Status(deviceID))
	}
}

// CheckoutReceipt returns the last completed sale for the station.
func CheckoutReceipt(svc checkoutsvc.Service, deviceID uuid.UUID, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receipt, err := svc.Receipt(deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

package controllers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	ledgersvc "github.com/urbanoasis/farmstand-backend/internal/ledger"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
	"github.com/urbanoasis/farmstand-backend/pkg/pagination"
)

// maxBatchDelete caps how many order ids one admin request may remove.
const maxBatchDelete = 1000

// TodayOrders returns every order recorded since local midnight.
func TodayOrders(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.TodaysOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

type orderPageResponse struct {
	Orders     any    `json:"orders"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// AdminListOrders pages through orders in a date range, newest first.
func AdminListOrders(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.OrdersByDateRange(r.Context(), start, end, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderPageResponse{Orders: page.Orders, NextCursor: page.NextCursor})
	}
}

// AdminDeleteOrder removes one order locally and from the mirror.
func AdminDeleteOrder(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "orderId")
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}
		if err := svc.DeleteOrder(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type batchDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// AdminDeleteOrders removes a batch of orders.
func AdminDeleteOrders(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload batchDeleteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(payload.IDs) > maxBatchDelete {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "too many order ids in one request").
					WithDetails(map[string]any{"max": maxBatchDelete}))
			return
		}
		if err := svc.DeleteOrders(r.Context(), payload.IDs); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "deleted", "count": len(payload.IDs)})
	}
}

// AdminExportOrdersCSV streams the ledger for a date range as a download.
func AdminExportOrdersCSV(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := validators.ParseDateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var buf bytes.Buffer
		if err := ledgersvc.ExportCSV(r.Context(), svc, &buf, start, end); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename := fmt.Sprintf("orders-%s-to-%s.csv", start.Format("2006-01-02"), end.Format("2006-01-02"))
		responses.WriteCSV(w, filename, buf.Bytes())
	}
}

type syncResponse struct {
	Synced  int   `json:"synced"`
	Pending int64 `json:"pending"`
}

// SyncOrdersNow pushes pending orders to the mirror on demand.
func SyncOrdersNow(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		synced, err := svc.SyncPendingOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pending, err := svc.PendingCount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, syncResponse{Synced: synced, Pending: pending})
	}
}

// PendingOrderCount reports how many sales still await the mirror.
func PendingOrderCount(svc ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := svc.PendingCount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"pending": pending})
	}
}

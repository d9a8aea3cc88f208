package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	ledgersvc "github.com/urbanoasis/farmstand-backend/internal/ledger"
	settingssvc "github.com/urbanoasis/farmstand-backend/internal/settings"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

// ListAnnouncements returns the banner rotation for the register screen.
func ListAnnouncements(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Announcements(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

type announcementRequest struct {
	Text string `json:"text" validate:"required"`
	Tone string `json:"tone" validate:"omitempty,oneof=info warning urgent"`
}

// AdminAddAnnouncement appends a banner to the rotation.
func AdminAddAnnouncement(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload announcementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.AddAnnouncement(r.Context(), payload.Text, enums.AnnouncementType(payload.Tone))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

type announcementToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// AdminToggleAnnouncement enables or disables one banner.
func AdminToggleAnnouncement(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "announcementId")
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "announcement id required"))
			return
		}
		var payload announcementToggleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetAnnouncementEnabled(r.Context(), id, *payload.Enabled); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// AdminRemoveAnnouncement deletes one banner.
func AdminRemoveAnnouncement(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "announcementId")
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "announcement id required"))
			return
		}
		if err := svc.RemoveAnnouncement(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminClearAnnouncements wipes the rotation.
func AdminClearAnnouncements(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearAnnouncements(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

type goalResponse struct {
	Target   *decimal.Decimal `json:"target,omitempty"`
	Total    decimal.Decimal  `json:"total"`
	Progress int              `json:"progress"`
}

// DailyGoal reports today's target alongside the running total. An unset or
// stale goal leaves target null with progress zero.
func DailyGoal(settings settingssvc.Service, orders ledgersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, set, err := settings.DailyGoal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total, err := orders.TodayTotal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := goalResponse{Total: total}
		if set {
			resp.Target = &target
			resp.Progress = settingssvc.Progress(target, total)
		}
		responses.WriteSuccess(w, resp)
	}
}

type goalRequest struct {
	Target decimal.Decimal `json:"target" validate:"required"`
}

// AdminSetDailyGoal sets today's sales target.
func AdminSetDailyGoal(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload goalRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetDailyGoal(r.Context(), payload.Target); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// AdminClearDailyGoal removes today's target.
func AdminClearDailyGoal(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearDailyGoal(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

package controllers

import (
	"net/http"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	"github.com/urbanoasis/farmstand-backend/api/validators"
	authsvc "github.com/urbanoasis/farmstand-backend/internal/auth"
	settingssvc "github.com/urbanoasis/farmstand-backend/internal/settings"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

type loginRequest struct {
	PIN string `json:"pin" validate:"required"`
}

// AuthLogin exchanges a station PIN for a session token.
func AuthLogin(svc authsvc.Service, deviceID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), payload.PIN, deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type updatePinsRequest struct {
	VolunteerPIN string `json:"volunteerPin" validate:"required"`
	AdminPIN     string `json:"adminPin" validate:"required"`
}

// AdminUpdatePins rotates both station PINs.
func AdminUpdatePins(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		var payload updatePinsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetPins(r.Context(), payload.VolunteerPIN, payload.AdminPIN); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urbanoasis/farmstand-backend/api/responses"
	settingssvc "github.com/urbanoasis/farmstand-backend/internal/settings"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
)

type favoritesResponse struct {
	IDs       []string `json:"ids"`
	Favorited *bool    `json:"favorited,omitempty"`
}

// ListFavorites returns the station's pinned product shortcuts.
func ListFavorites(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := svc.Favorites(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		responses.WriteSuccess(w, favoritesResponse{IDs: ids})
	}
}

// ToggleFavorite pins or unpins one product.
func ToggleFavorite(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "productId")
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id required"))
			return
		}
		ids, favorited, err := svc.ToggleFavorite(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		responses.WriteSuccess(w, favoritesResponse{IDs: ids, Favorited: &favorited})
	}
}

// ClearFavorites unpins everything.
func ClearFavorites(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearFavorites(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

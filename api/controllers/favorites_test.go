package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestListFavorites(t *testing.T) {
	svc := &stubSettings{favorites: []string{"p2", "p1"}}
	handler := ListFavorites(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data favoritesResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, []string{"p2", "p1"}, envelope.Data.IDs)
	require.Nil(t, envelope.Data.Favorited)
}

func TestListFavoritesEmpty(t *testing.T) {
	handler := ListFavorites(&stubSettings{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	// An empty list serializes as [], not null.
	require.Contains(t, resp.Body.String(), `"ids":[]`)
}

func TestToggleFavoritePins(t *testing.T) {
	svc := &stubSettings{}
	handler := ToggleFavorite(svc, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", "p1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/favorites/p1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data favoritesResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Data.Favorited)
	require.True(t, *envelope.Data.Favorited)
	require.Equal(t, []string{"p1"}, envelope.Data.IDs)
}

func TestToggleFavoriteUnpins(t *testing.T) {
	svc := &stubSettings{favorites: []string{"p1"}}
	handler := ToggleFavorite(svc, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", "p1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/favorites/p1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data favoritesResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Data.Favorited)
	require.False(t, *envelope.Data.Favorited)
	require.Empty(t, envelope.Data.IDs)
}

func TestClearFavoritesHandler(t *testing.T) {
	svc := &stubSettings{favorites: []string{"p1", "p2"}}
	handler := ClearFavorites(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/favorites", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, svc.favorites)
}

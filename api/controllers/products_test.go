package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	catalogsvc "github.com/urbanoasis/farmstand-backend/internal/catalog"
	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
)

type stubCatalog struct {
	products []models.Product
	replaced []catalogsvc.ProductInput
}

func (s *stubCatalog) List(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	return s.products, nil
}

func (s *stubCatalog) Categories(ctx context.Context) ([]string, error) {
	return []string{"Vegetables"}, nil
}

func (s *stubCatalog) AddProduct(ctx context.Context, input catalogsvc.ProductInput) (*models.Product, error) {
	return &models.Product{Name: input.Name}, nil
}

func (s *stubCatalog) DeleteProduct(ctx context.Context, id string) error {
	panic("unimplemented")
}

func (s *stubCatalog) ReplaceAll(ctx context.Context, inputs []catalogsvc.ProductInput) ([]models.Product, error) {
	s.replaced = inputs
	out := make([]models.Product, len(inputs))
	for i, input := range inputs {
		out[i] = models.Product{Name: input.Name}
	}
	return out, nil
}

func (s *stubCatalog) ClearAll(ctx context.Context) error {
	panic("unimplemented")
}

func (s *stubCatalog) RefreshFromMirror(ctx context.Context) error {
	panic("unimplemented")
}

func TestAdminCreateProduct(t *testing.T) {
	handler := AdminCreateProduct(&stubCatalog{}, nil)

	body := `{"name":"Sweet Corn","price":0.75,"unit":"each","category":"Vegetables"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
}

func TestAdminCreateProductRejectsBadUnit(t *testing.T) {
	handler := AdminCreateProduct(&stubCatalog{}, nil)

	body := `{"name":"Sweet Corn","price":0.75,"unit":"bushel"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminUploadProductsCSV(t *testing.T) {
	svc := &stubCatalog{}
	handler := AdminUploadProductsCSV(svc, nil)

	csvBody := "name,price,unit,category\nHeirloom Tomatoes,4.50,lb,Vegetables\nSweet Corn,0.75,each,Vegetables\n"
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products/upload", strings.NewReader(csvBody))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, svc.replaced, 2)

	var envelope struct {
		Data uploadResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, 2, envelope.Data.Imported)
}

func TestAdminUploadProductsCSVRejectsBadRows(t *testing.T) {
	svc := &stubCatalog{}
	handler := AdminUploadProductsCSV(svc, nil)

	// One bad row rejects the whole upload; nothing is replaced.
	csvBody := "name,price,unit,category\nHeirloom Tomatoes,not-a-price,lb,Vegetables\n"
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products/upload", strings.NewReader(csvBody))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Nil(t, svc.replaced)
}

func TestAdminSampleCSV(t *testing.T) {
	handler := AdminSampleCSV()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/products/sample-csv", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Header().Get("Content-Disposition"), "products-sample.csv")
	require.True(t, strings.HasPrefix(resp.Body.String(), "name,price,unit,category"))
}

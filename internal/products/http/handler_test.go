package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"product-catalog/internal/products"
	"product-catalog/internal/products/search"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type stubService struct {
	createFn func(ctx context.Context, p products.Product) (products.Product, error)
	findFn   func(ctx context.Context, id int64) (products.Product, bool, error)
	searchFn func(ctx context.Context, f search.Filter) ([]products.Product, error)
	updateFn func(ctx context.Context, id int64, p products.Product) (products.Product, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (s *stubService) CreateProduct(ctx context.Context, p products.Product) (products.Product, error) {
	return s.createFn(ctx, p)
}
func (s *stubService) FindProduct(ctx context.Context, id int64) (products.Product, bool, error) {
	return s.findFn(ctx, id)
}
func (s *stubService) SearchProducts(ctx context.Context, f search.Filter) ([]products.Product, error) {
	return s.searchFn(ctx, f)
}
func (s *stubService) UpdateProduct(ctx context.Context, id int64, p products.Product) (products.Product, error) {
	return s.updateFn(ctx, id, p)
}
func (s *stubService) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteFn(ctx, id)
}

func setupRouter(svc ProductService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, NewHandler(svc), healthy{}, ServiceInfo{Name: "product-catalog", Version: "test"})
	return r
}

type healthy struct{}

func (healthy) Health() error { return nil }

type unhealthy struct{}

func (unhealthy) Health() error { return errors.New("connection refused") }

func hat(id int64) products.Product {
	return products.Product{
		ID:        id,
		Name:      "Hat",
		Price:     decimal.RequireFromString("10"),
		Available: true,
		Category:  products.CategoryCloths,
	}
}

func TestHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		contentType  string
		svcErr       error
		wantStatus   int
		wantCalled   bool
		wantLocation string
	}{
		{
			name:         "success",
			body:         `{"name":"Hat","price":10.0,"available":true,"category":"CLOTHS"}`,
			contentType:  "application/json",
			wantStatus:   http.StatusCreated,
			wantCalled:   true,
			wantLocation: "/products/1",
		},
		{
			name:        "charset parameter accepted",
			body:        `{"name":"Hat","price":"10.00"}`,
			contentType: "application/json; charset=utf-8",
			wantStatus:  http.StatusCreated,
			wantCalled:  true,
		},
		{
			name:        "wrong content type",
			body:        `{"name":"Hat","price":10}`,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "missing content type",
			body:        `{"name":"Hat","price":10}`,
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "empty object",
			body:        `{}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "invalid json",
			body:        `not json`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "trailing data",
			body:        `{"name":"Hat","price":10} {}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "array payload",
			body:        `[{"name":"Hat","price":10}]`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "negative price",
			body:        `{"name":"Hat","price":-1}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "available as string",
			body:        `{"name":"Hat","price":10,"available":"true"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "price exponent",
			body:        `{"name":"Hat","price":"1e50000000"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "body too large",
			body:        `{"name":"Hat","price":1,"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`,
			contentType: "application/json",
			wantStatus:  http.StatusRequestEntityTooLarge,
		},
		{
			name:        "service validation error",
			body:        `{"name":"Hat","price":10}`,
			contentType: "application/json",
			svcErr:      &products.ValidationError{Field: "name", Message: "is taken"},
			wantStatus:  http.StatusBadRequest,
			wantCalled:  true,
		},
		{
			name:        "storage failure",
			body:        `{"name":"Hat","price":10}`,
			contentType: "application/json",
			svcErr:      errors.New("disk full"),
			wantStatus:  http.StatusInternalServerError,
			wantCalled:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &stubService{
				createFn: func(_ context.Context, p products.Product) (products.Product, error) {
					called = true
					if tt.svcErr != nil {
						return products.Product{}, tt.svcErr
					}
					p.ID = 1
					return p, nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if called != tt.wantCalled {
				t.Fatalf("want service called %v, got %v", tt.wantCalled, called)
			}
			if tt.wantLocation != "" && w.Header().Get("Location") != tt.wantLocation {
				t.Fatalf("want Location %q, got %q", tt.wantLocation, w.Header().Get("Location"))
			}
			if w.Code >= http.StatusBadRequest {
				var resp errorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if resp.Error == "" {
					t.Fatal("expected error message")
				}
			}
		})
	}
}

func TestHandler_CreateProduct_HidesInternalErrors(t *testing.T) {
	svc := &stubService{
		createFn: func(context.Context, products.Product) (products.Product, error) {
			return products.Product{}, errors.New("pq: password authentication failed")
		},
	}

	r := setupRouter(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"Hat","price":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "failed to create product" {
		t.Fatalf("want generic message, got %q", resp.Error)
	}
}

func TestHandler_GetProduct(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		found      bool
		svcErr     error
		wantStatus int
		wantCalled bool
	}{
		{name: "found", url: "/products/1", found: true, wantStatus: http.StatusOK, wantCalled: true},
		{name: "absent", url: "/products/999", wantStatus: http.StatusNotFound, wantCalled: true},
		{name: "malformed id", url: "/products/abc", wantStatus: http.StatusNotFound},
		{name: "zero id", url: "/products/0", wantStatus: http.StatusNotFound},
		{name: "storage failure", url: "/products/1", svcErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &stubService{
				findFn: func(_ context.Context, id int64) (products.Product, bool, error) {
					called = true
					if tt.svcErr != nil {
						return products.Product{}, false, tt.svcErr
					}
					if !tt.found {
						return products.Product{}, false, nil
					}
					return hat(id), true, nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if called != tt.wantCalled {
				t.Fatalf("want service called %v, got %v", tt.wantCalled, called)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["price"] != "10" || body["category"] != "CLOTHS" || body["id"] != float64(1) {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestHandler_UpdateProduct(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		body        string
		contentType string
		svcErr      error
		wantStatus  int
		wantCalled  bool
	}{
		{
			name:        "success",
			url:         "/products/5",
			body:        `{"name":"Hat","price":12.5,"available":false,"category":"CLOTHS"}`,
			contentType: "application/json",
			wantStatus:  http.StatusOK,
			wantCalled:  true,
		},
		{
			name:        "absent",
			url:         "/products/5",
			body:        `{"name":"Hat","price":12.5}`,
			contentType: "application/json",
			svcErr:      products.ErrNotFound,
			wantStatus:  http.StatusNotFound,
			wantCalled:  true,
		},
		{
			name:        "malformed id",
			url:         "/products/five",
			body:        `{"name":"Hat","price":12.5}`,
			contentType: "application/json",
			wantStatus:  http.StatusNotFound,
		},
		{
			name:        "invalid category",
			url:         "/products/5",
			body:        `{"name":"Hat","price":12.5,"category":"not a tag"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "wrong content type",
			url:         "/products/5",
			body:        `name=Hat`,
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &stubService{
				updateFn: func(_ context.Context, id int64, p products.Product) (products.Product, error) {
					called = true
					if tt.svcErr != nil {
						return products.Product{}, tt.svcErr
					}
					p.ID = id
					return p, nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, tt.url, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if called != tt.wantCalled {
				t.Fatalf("want service called %v, got %v", tt.wantCalled, called)
			}
		})
	}
}

func TestHandler_DeleteProduct(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		svcErr     error
		wantStatus int
		wantCalled bool
	}{
		{name: "success", url: "/products/1", wantStatus: http.StatusNoContent, wantCalled: true},
		{name: "invalid id", url: "/products/abc", wantStatus: http.StatusNoContent},
		{name: "negative id", url: "/products/-3", wantStatus: http.StatusNoContent},
		{name: "storage failure", url: "/products/1", svcErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &stubService{
				deleteFn: func(_ context.Context, _ int64) error {
					called = true
					return tt.svcErr
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, tt.url, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if called != tt.wantCalled {
				t.Fatalf("want service called %v, got %v", tt.wantCalled, called)
			}
			if tt.wantStatus == http.StatusNoContent && w.Body.Len() != 0 {
				t.Fatalf("want empty body, got %q", w.Body.String())
			}
		})
	}
}

func TestHandler_ListProducts(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		items      []products.Product
		wantStatus int
		wantLen    int
		check      func(t *testing.T, f search.Filter)
	}{
		{
			name:       "returns items",
			url:        "/products",
			items:      []products.Product{hat(1), hat(2)},
			wantStatus: http.StatusOK,
			wantLen:    2,
			check: func(t *testing.T, f search.Filter) {
				if !f.Empty() {
					t.Fatalf("want empty filter, got %+v", f)
				}
			},
		},
		{
			name:       "empty list is an array",
			url:        "/products",
			wantStatus: http.StatusOK,
			wantLen:    0,
		},
		{
			name:       "all filters",
			url:        "/products?name=Hat&category=CLOTHS&available=TRUE&price=10.00",
			items:      []products.Product{hat(1)},
			wantStatus: http.StatusOK,
			wantLen:    1,
			check: func(t *testing.T, f search.Filter) {
				if f.Name == nil || *f.Name != "Hat" {
					t.Fatalf("name filter: %+v", f.Name)
				}
				if f.Category == nil || *f.Category != products.CategoryCloths {
					t.Fatalf("category filter: %+v", f.Category)
				}
				if f.Available == nil || !*f.Available {
					t.Fatalf("available filter: %+v", f.Available)
				}
				if f.Price == nil || !f.Price.Equal(decimal.NewFromInt(10)) {
					t.Fatalf("price filter: %+v", f.Price)
				}
			},
		},
		{
			name:       "available false",
			url:        "/products?available=False",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f search.Filter) {
				if f.Available == nil || *f.Available {
					t.Fatalf("available filter: %+v", f.Available)
				}
			},
		},
		{name: "non-boolean available", url: "/products?available=notaboolean", wantStatus: http.StatusBadRequest},
		{name: "unknown key", url: "/products?colour=red", wantStatus: http.StatusBadRequest},
		{name: "repeated key", url: "/products?name=a&name=b", wantStatus: http.StatusBadRequest},
		{name: "malformed category", url: "/products?category=food", wantStatus: http.StatusBadRequest},
		{name: "malformed price", url: "/products?price=cheap", wantStatus: http.StatusBadRequest},
		{name: "price exponent", url: "/products?price=1e50000000", wantStatus: http.StatusBadRequest},
		{name: "price too precise", url: "/products?price=0.00001", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &stubService{
				searchFn: func(_ context.Context, f search.Filter) ([]products.Product, error) {
					called = true
					if tt.check != nil {
						tt.check(t, f)
					}
					return tt.items, nil
				},
			}

			r := setupRouter(svc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("want status %d, got %d, body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if called {
					t.Fatal("service must not be called for a rejected query")
				}
				return
			}

			var resp []map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp == nil {
				t.Fatal("want a JSON array, got null")
			}
			if len(resp) != tt.wantLen {
				t.Fatalf("want %d items, got %d", tt.wantLen, len(resp))
			}
		})
	}
}

func TestRoutes_RootAndHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := setupRouter(&stubService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var info ServiceInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != "product-catalog" || info.Version != "test" {
		t.Fatalf("unexpected info: %+v", info)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("want healthz 200, got %d", w.Code)
	}

	sick := gin.New()
	RegisterRoutes(sick, NewHandler(&stubService{}), unhealthy{}, ServiceInfo{})
	w = httptest.NewRecorder()
	sick.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want healthz 503, got %d", w.Code)
	}
}

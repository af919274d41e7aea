package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// ProductService defines the behavior needed by ProductHandler.
type ProductService interface {
	Create(ctx context.Context, input usecase.ProductInput) (*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	LowStock(ctx context.Context, limit int) ([]*domain.Product, error)
	Update(ctx context.Context, id string, input usecase.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error)
}

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	products ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	product, err := h.products.Create(r.Context(), req.ToInput())
	if err != nil {
		writeDomainError(w, "failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ProductFromDomain(product))
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))

	products, err := h.products.List(r.Context(), domain.ProductFilter{
		Search:       r.URL.Query().Get("search"),
		LowStockOnly: strings.EqualFold(r.URL.Query().Get("low_stock"), "true"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		writeDomainError(w, "failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": dto.ProductsFromDomain(products)})
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.LowStock(r.Context(), parseIntQuery(r, "limit", 0))
	if err != nil {
		writeDomainError(w, "failed to list low stock", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": dto.ProductsFromDomain(products)})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProductFromDomain(product))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	product, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		writeDomainError(w, "failed to update product", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProductFromDomain(product))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock moves the quantity by the requested delta.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req dto.StockAdjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	product, err := h.products.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeDomainError(w, "failed to adjust stock", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProductFromDomain(product))
}

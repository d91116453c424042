package tracker

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/buildtrack/buildtrack-backend/internal/httputil"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	products, err := h.store.ListProducts(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, "ListProducts", userID, err, "Failed to fetch products")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// CreateProduct assigns a generated SKU when the request leaves it blank.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createProductRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "CreateProduct", "", err, "Failed to create product")
		return
	}

	product := Product{
		UserID:      userID,
		SKU:         req.SKU,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
		UnitPrice:   req.UnitPrice,
		Unit:        strings.TrimSpace(req.Unit),
	}
	if err := h.store.CreateProduct(r.Context(), &product); err != nil {
		httputil.WriteError(w, r, "CreateProduct", req.SKU, err, "Failed to create product")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, product)
}

func (h *Handler) SimilarProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	products, err := h.store.FindSimilarProducts(r.Context(), userID, name)
	if err != nil {
		httputil.WriteError(w, r, "SimilarProducts", name, err, "Failed to find similar products")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	stats, err := h.store.DashboardStats(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, "DashboardStats", userID, err, "Failed to fetch dashboard stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

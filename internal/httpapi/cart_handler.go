// Package httpapi exposes the storefront cart over HTTP for the web client.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/naiyo-24/Mommynme/internal/cart"
	"github.com/naiyo-24/Mommynme/internal/catalog"
	"github.com/naiyo-24/Mommynme/internal/domain"
	"github.com/naiyo-24/Mommynme/internal/pricing"
	"github.com/sirupsen/logrus"
)

const recommendationCount = 3

// Carts resolves the cart session for a session id.
// Consumers define this interface, not the registry implementation.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Session, error)
}

type CartHandler struct {
	carts   Carts
	catalog catalog.Supplier
	timeout time.Duration
	log     *logrus.Entry
}

func NewCartHandler(carts Carts, supplier catalog.Supplier, timeout time.Duration, log *logrus.Entry) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: supplier,
		timeout: timeout,
		log:     log,
	}
}

func (h *CartHandler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Get("/summary", h.GetSummary)
		r.Post("/items", h.AddItem)
		r.Put("/items/{product_id}", h.UpdateQuantity)
		r.Put("/items/{product_id}/color", h.UpdateColor)
		r.Delete("/items/{product_id}", h.RemoveItem)
	})
	r.Get("/recommendations", h.GetRecommendations)
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type UpdateColorRequestDTO struct {
	Color string `json:"color"`
}

type CartResponseDTO struct {
	Items      []domain.CartLine `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice float64           `json:"total_price"`
}

type SummaryResponseDTO struct {
	TotalItems   int     `json:"total_items"`
	TotalPrice   float64 `json:"total_price"`
	TotalSavings float64 `json:"total_savings"`
	FinalPrice   float64 `json:"final_price"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	items, err := h.catalog.FetchCatalog(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to fetch catalog")
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "could not reach product catalog")
		return
	}

	var item *domain.CatalogItem
	for i := range items {
		if items[i].ID == req.ProductID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		respondError(w, http.StatusNotFound, "unknown_product", "no such product in catalog")
		return
	}
	if item.StockQuantity == 0 {
		respondError(w, http.StatusConflict, "out_of_stock", "product is unavailable")
		return
	}

	sess.Store.AddItem(*item, req.Color)
	respondJSON(w, http.StatusCreated, cartResponse(sess.Store))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(sess.Store))
}

func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	lines := sess.Store.Lines()
	totalPrice := sess.Store.TotalPrice()
	savings := pricing.TotalSavings(lines)

	respondJSON(w, http.StatusOK, SummaryResponseDTO{
		TotalItems:   sess.Store.TotalItemCount(),
		TotalPrice:   totalPrice,
		TotalSavings: savings,
		FinalPrice:   totalPrice - savings,
	})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess.Store.UpdateQuantity(chi.URLParam(r, "product_id"), req.Quantity)
	respondJSON(w, http.StatusOK, cartResponse(sess.Store))
}

func (h *CartHandler) UpdateColor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	var req UpdateColorRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess.Store.UpdateColor(chi.URLParam(r, "product_id"), req.Color)
	respondJSON(w, http.StatusOK, cartResponse(sess.Store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	sess.Store.RemoveItem(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, cartResponse(sess.Store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	sess.Store.Clear()
	respondJSON(w, http.StatusOK, cartResponse(sess.Store))
}

func (h *CartHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}

	items, err := h.catalog.FetchCatalog(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to fetch catalog")
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "could not reach product catalog")
		return
	}

	recommended := pricing.Recommend(sess.Store.Lines(), items, recommendationCount)
	respondJSON(w, http.StatusOK, recommended)
}

func (h *CartHandler) session(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Session, bool) {
	sessionID := getSessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session id on request")
		return nil, false
	}

	sess, err := h.carts.Get(ctx, sessionID)
	if err != nil {
		h.log.WithError(err).WithField("session_id", sessionID).Error("failed to open cart session")
		respondError(w, http.StatusInternalServerError, "cart_unavailable", "could not open cart session")
		return nil, false
	}
	return sess, true
}

func cartResponse(store *cart.Store) CartResponseDTO {
	return CartResponseDTO{
		Items:      store.Lines(),
		TotalItems: store.TotalItemCount(),
		TotalPrice: store.TotalPrice(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}

package cart

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wecure/medstore/internal/auth"
	"github.com/wecure/medstore/internal/httpapi"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/cart", h.handleGet)
	r.Post("/cart/items", h.handleAdd)
	r.Put("/cart/items/{id}", h.handleUpdate)
	r.Delete("/cart/items/{id}", h.handleRemove)
	r.Delete("/cart", h.handleClear)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	cart, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error fetching cart")
		return
	}

	httpapi.WriteData(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == 0 {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Product ID is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Valid quantity is required")
		return
	}

	item, err := h.repo.Add(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error adding to cart")
		return
	}

	h.logger.Info("item added to cart", "user_id", userID, "product_id", req.ProductID, "quantity", req.Quantity)
	httpapi.WriteMessage(w, http.StatusCreated, "Item added to cart successfully", item)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid cart item id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity < 1 {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Valid quantity is required")
		return
	}

	item, err := h.repo.UpdateQuantity(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error updating cart item")
		return
	}

	httpapi.WriteMessage(w, http.StatusOK, "Cart item updated successfully", item)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid cart item id")
		return
	}

	if err := h.repo.Remove(r.Context(), userID, itemID); err != nil {
		httpapi.WriteError(w, h.logger, err, "Error removing from cart")
		return
	}

	httpapi.WriteMessage(w, http.StatusOK, "Item removed from cart successfully", nil)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if err := h.repo.Clear(r.Context(), userID); err != nil {
		httpapi.WriteError(w, h.logger, err, "Error clearing cart")
		return
	}

	httpapi.WriteMessage(w, http.StatusOK, "Cart cleared successfully", nil)
}

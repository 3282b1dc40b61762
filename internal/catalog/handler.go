package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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
	r.Get("/products", h.handleList)
	r.Get("/products/{id}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListActive(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error fetching products")
		return
	}

	httpapi.WriteData(w, http.StatusOK, products)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error fetching product")
		return
	}

	if product == nil || !product.IsActive {
		httpapi.WriteFailure(w, http.StatusNotFound, "Product not found")
		return
	}

	httpapi.WriteData(w, http.StatusOK, product)
}

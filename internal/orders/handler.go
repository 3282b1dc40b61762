package orders

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wecure/medstore/internal/auth"
	"github.com/wecure/medstore/internal/cache"
	"github.com/wecure/medstore/internal/domain"
	"github.com/wecure/medstore/internal/httpapi"
	"github.com/wecure/medstore/internal/messaging"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Handler struct {
	repo      *Repository
	created   *messaging.Producer
	cancelled *messaging.Producer
	redis     *redis.Client
	logger    *slog.Logger
}

// NewHandler wires the order endpoints. The producers and redis client may be
// nil; events and status caching are then skipped.
func NewHandler(repo *Repository, created, cancelled *messaging.Producer, redisClient *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		created:   created,
		cancelled: cancelled,
		redis:     redisClient,
		logger:    logger,
	}
}

// Register mounts the authenticated order routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.handleCreate)
	r.Get("/orders", h.handleList)
	r.Get("/orders/{id}", h.handleGet)
	r.Put("/orders/{id}/cancel", h.handleCancel)
}

// RegisterPublic mounts the tracking-link route, which needs no bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/orders/status/{orderNumber}", h.handleStatus)
}

type createOrderRequest struct {
	DeliveryAddress string `json:"deliveryAddress"`
	DeliveryPhone   string `json:"deliveryPhone"`
	DeliveryName    string `json:"deliveryName"`
	PaymentMethod   string `json:"paymentMethod"`
	Notes           string `json:"notes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.repo.CreateFromCart(r.Context(), userID, CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		DeliveryPhone:   req.DeliveryPhone,
		DeliveryName:    req.DeliveryName,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error creating order")
		return
	}

	h.publishCreated(r, order)

	h.logger.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber,
		"user_id", userID, "total_amount", order.TotalAmount)
	httpapi.WriteMessage(w, http.StatusCreated, "Order created successfully", order)
}

// publishCreated is a best-effort side channel: a publish failure is logged
// and never surfaced to the client, whose order is already committed.
func (h *Handler) publishCreated(r *http.Request, order *domain.Order) {
	if h.created == nil {
		return
	}

	items := make([]domain.OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.OrderEventItem{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	event := domain.OrderCreatedEvent{
		EventID:       uuid.NewString(),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		CustomerEmail: auth.Email(r.Context()),
		TotalAmount:   order.TotalAmount,
		Items:         items,
		Timestamp:     order.CreatedAt,
	}
	if err := h.created.Publish(r.Context(), order.OrderNumber, event); err != nil {
		h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	status := domain.OrderStatus(r.URL.Query().Get("status"))

	orderList, totalItems, err := h.repo.List(r.Context(), userID, page, limit, status)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error fetching orders")
		return
	}

	httpapi.WritePage(w, orderList, httpapi.NewPagination(page, limit, totalItems))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), userID, orderID)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error fetching order")
		return
	}

	httpapi.WriteData(w, http.StatusOK, order)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteFailure(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.repo.Cancel(r.Context(), userID, orderID)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error cancelling order")
		return
	}

	h.invalidateStatusCache(r, order.OrderNumber)

	if h.cancelled != nil {
		event := domain.OrderCancelledEvent{
			EventID:       uuid.NewString(),
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			CustomerEmail: auth.Email(r.Context()),
			Timestamp:     time.Now().UTC(),
		}
		if err := h.cancelled.Publish(r.Context(), order.OrderNumber, event); err != nil {
			h.logger.Error("failed to publish order cancelled event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order cancelled", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", userID)
	httpapi.WriteMessage(w, http.StatusOK, "Order cancelled successfully", nil)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	if view, ok := h.cachedStatus(r, orderNumber); ok {
		httpapi.WriteData(w, http.StatusOK, view)
		return
	}

	view, err := h.repo.StatusByNumber(r.Context(), orderNumber)
	if err != nil {
		httpapi.WriteError(w, h.logger, err, "Error fetching order status")
		return
	}

	h.cacheStatus(r, orderNumber, view)
	httpapi.WriteData(w, http.StatusOK, view)
}

func (h *Handler) cachedStatus(r *http.Request, orderNumber string) (*domain.OrderStatusView, bool) {
	if h.redis == nil {
		return nil, false
	}

	key := fmt.Sprintf(cache.KeyOrderStatus, orderNumber)
	raw, err := h.redis.Get(r.Context(), key).Result()
	if err != nil {
		return nil, false
	}

	view := &domain.OrderStatusView{}
	if err := json.Unmarshal([]byte(raw), view); err != nil {
		return nil, false
	}
	return view, true
}

func (h *Handler) cacheStatus(r *http.Request, orderNumber string, view *domain.OrderStatusView) {
	if h.redis == nil {
		return
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	key := fmt.Sprintf(cache.KeyOrderStatus, orderNumber)
	if err := h.redis.Set(r.Context(), key, raw, cache.TTLOrderStatus).Err(); err != nil {
		h.logger.Error("failed to cache order status", "error", err, "order_number", orderNumber)
	}
}

func (h *Handler) invalidateStatusCache(r *http.Request, orderNumber string) {
	if h.redis == nil {
		return
	}

	key := fmt.Sprintf(cache.KeyOrderStatus, orderNumber)
	if err := h.redis.Del(r.Context(), key).Err(); err != nil {
		h.logger.Error("failed to invalidate status cache", "error", err, "order_number", orderNumber)
	}
}

func parseQueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

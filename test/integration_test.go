//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wecure/medstore/internal/auth"
	"github.com/wecure/medstore/internal/cart"
	"github.com/wecure/medstore/internal/domain"
	"github.com/wecure/medstore/internal/messaging"
	"github.com/wecure/medstore/internal/orders"
	"github.com/wecure/medstore/internal/worker"
)

func insertProduct(t *testing.T, db *sql.DB, name, price string, stock int) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO products (name, price, stock, category)
		VALUES ($1, $2, $3, 'medicines')
		RETURNING id`, name, price, stock).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert product %s: %v", name, err)
	}
	return id
}

func productStock(t *testing.T, db *sql.DB, id int64) int {
	t.Helper()

	var stock int
	if err := db.QueryRow(`SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock for product %d: %v", id, err)
	}
	return stock
}

func checkoutInput() orders.CheckoutInput {
	return orders.CheckoutInput{
		DeliveryAddress: "12 Harbor Lane, Apt 3",
		DeliveryPhone:   "+62-812-0000-1111",
		DeliveryName:    "Ade Wijaya",
		PaymentMethod:   "bank_transfer",
	}
}

func TestCheckoutFromCart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	paracetamolID := insertProduct(t, db, "Paracetamol 500mg", "12.50", 100)
	vitaminID := insertProduct(t, db, "Vitamin C 1000mg", "8.25", 40)

	const userID int64 = 1
	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Add(ctx, userID, paracetamolID, 2); err != nil {
		t.Fatalf("failed to add paracetamol to cart: %v", err)
	}
	if _, err := cartRepo.Add(ctx, userID, vitaminID, 3); err != nil {
		t.Fatalf("failed to add vitamin to cart: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	order, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusPending, order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}

	// 2 * 12.50 + 3 * 8.25
	wantTotal := decimal.RequireFromString("49.75")
	if !order.TotalAmount.Equal(wantTotal) {
		t.Fatalf("expected total %s, got %s", wantTotal, order.TotalAmount)
	}

	itemSum := decimal.Zero
	for _, item := range order.Items {
		itemSum = itemSum.Add(item.TotalPrice)
	}
	if !itemSum.Equal(order.TotalAmount) {
		t.Fatalf("item totals %s do not add up to order total %s", itemSum, order.TotalAmount)
	}

	if got := productStock(t, db, paracetamolID); got != 98 {
		t.Fatalf("expected paracetamol stock 98, got %d", got)
	}
	if got := productStock(t, db, vitaminID); got != 37 {
		t.Fatalf("expected vitamin stock 37, got %d", got)
	}

	cartAfter, err := cartRepo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("failed to fetch cart: %v", err)
	}
	if len(cartAfter.Items) != 0 {
		t.Fatalf("expected cart to be cleared, got %d items", len(cartAfter.Items))
	}

	fetched, err := orderRepo.GetByID(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched.OrderNumber != order.OrderNumber {
		t.Fatalf("order number mismatch: %s vs %s", fetched.OrderNumber, order.OrderNumber)
	}
}

func TestCheckoutValidation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	orderRepo := orders.NewRepository(db)

	var validationErr *domain.ValidationError

	_, err := orderRepo.CreateFromCart(ctx, 1, orders.CheckoutInput{})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for missing fields, got %v", err)
	}

	_, err = orderRepo.CreateFromCart(ctx, 1, checkoutInput())
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
	if validationErr.Message != "Cart is empty" {
		t.Fatalf("unexpected message %q", validationErr.Message)
	}
}

func TestCheckoutInsufficientStockLeavesNothingBehind(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Amoxicillin 250mg", "22.00", 5)

	const userID int64 = 7
	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Add(ctx, userID, productID, 3); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	// Simulate a concurrent sale draining the stock after the item was carted.
	if _, err := db.Exec(`UPDATE products SET stock = 2 WHERE id = $1`, productID); err != nil {
		t.Fatalf("failed to drain stock: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	_, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(validationErr.Message, "Amoxicillin") {
		t.Fatalf("expected message to name the product, got %q", validationErr.Message)
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders after failed checkout, got %d", orderCount)
	}

	if got := productStock(t, db, productID); got != 2 {
		t.Fatalf("expected stock unchanged at 2, got %d", got)
	}

	cartAfter, err := cartRepo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("failed to fetch cart: %v", err)
	}
	if len(cartAfter.Items) != 1 {
		t.Fatalf("expected cart untouched with 1 item, got %d", len(cartAfter.Items))
	}
}

func TestConcurrentCheckoutLastUnit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Insulin Pen", "310.00", 1)

	cartRepo := cart.NewRepository(db)
	orderRepo := orders.NewRepository(db)

	userIDs := []int64{21, 22}
	for _, userID := range userIDs {
		if _, err := cartRepo.Add(ctx, userID, productID, 1); err != nil {
			t.Fatalf("failed to add to cart for user %d: %v", userID, err)
		}
	}

	var wg sync.WaitGroup
	results := make([]error, len(userIDs))
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, results[i] = orderRepo.CreateFromCart(ctx, userID, checkoutInput())
		}(i, userID)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		if err == nil {
			successes++
			continue
		}
		var validationErr *domain.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("user %d: expected validation error, got %v", userIDs[i], err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful checkout, got %d", successes)
	}

	if got := productStock(t, db, productID); got != 0 {
		t.Fatalf("expected stock 0 after the single sale, got %d", got)
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected exactly one order, got %d", orderCount)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Ibuprofen 400mg", "15.00", 50)

	const userID int64 = 3
	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Add(ctx, userID, productID, 4); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	order, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if got := productStock(t, db, productID); got != 46 {
		t.Fatalf("expected stock 46 after checkout, got %d", got)
	}

	cancelled, err := orderRepo.Cancel(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusCancelled, cancelled.Status)
	}

	if got := productStock(t, db, productID); got != 50 {
		t.Fatalf("expected stock restored to 50, got %d", got)
	}

	var stateErr *domain.InvalidStateError
	_, err = orderRepo.Cancel(ctx, userID, order.ID)
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected invalid state error on double cancel, got %v", err)
	}
	if stateErr.Message != "Order is already cancelled" {
		t.Fatalf("unexpected message %q", stateErr.Message)
	}

	// Double cancel must not restore stock twice.
	if got := productStock(t, db, productID); got != 50 {
		t.Fatalf("expected stock still 50 after rejected cancel, got %d", got)
	}
}

func TestCancelShippedRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Cough Syrup", "9.90", 20)

	const userID int64 = 4
	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Add(ctx, userID, productID, 1); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	order, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
	} {
		if err := orderRepo.AdvanceStatus(ctx, order.ID, status); err != nil {
			t.Fatalf("failed to advance to %s: %v", status, err)
		}
	}

	var stateErr *domain.InvalidStateError
	_, err = orderRepo.Cancel(ctx, userID, order.ID)
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected invalid state error cancelling shipped order, got %v", err)
	}

	if got := productStock(t, db, productID); got != 19 {
		t.Fatalf("expected stock to stay at 19, got %d", got)
	}
}

func TestListOrdersPagination(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Bandages", "4.00", 100)

	const userID int64 = 9
	cartRepo := cart.NewRepository(db)
	orderRepo := orders.NewRepository(db)

	var lastOrderID int64
	for i := 0; i < 3; i++ {
		if _, err := cartRepo.Add(ctx, userID, productID, 1); err != nil {
			t.Fatalf("failed to add to cart: %v", err)
		}
		order, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())
		if err != nil {
			t.Fatalf("checkout %d failed: %v", i, err)
		}
		lastOrderID = order.ID
	}

	pageOne, total, err := orderRepo.List(ctx, userID, 1, 2, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 total orders, got %d", total)
	}
	if len(pageOne) != 2 {
		t.Fatalf("expected 2 orders on page 1, got %d", len(pageOne))
	}

	pageTwo, _, err := orderRepo.List(ctx, userID, 2, 2, "")
	if err != nil {
		t.Fatalf("list page 2 failed: %v", err)
	}
	if len(pageTwo) != 1 {
		t.Fatalf("expected 1 order on page 2, got %d", len(pageTwo))
	}

	if _, err := orderRepo.Cancel(ctx, userID, lastOrderID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	cancelledOnly, total, err := orderRepo.List(ctx, userID, 1, 10, domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if total != 1 || len(cancelledOnly) != 1 {
		t.Fatalf("expected 1 cancelled order, got total=%d len=%d", total, len(cancelledOnly))
	}
	if cancelledOnly[0].ID != lastOrderID {
		t.Fatalf("expected cancelled order %d, got %d", lastOrderID, cancelledOnly[0].ID)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestCheckoutOverHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Thermometer", "35.00", 10)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewVerifier("integration-test-secret")

	cartHandler := cart.NewHandler(cart.NewRepository(db), logger)
	orderHandler := orders.NewHandler(orders.NewRepository(db), nil, nil, nil, logger)

	r := chi.NewRouter()
	orderHandler.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		cartHandler.Register(r)
		orderHandler.Register(r)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	token, err := verifier.Sign(42, "customer@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	do := func(method, path, body string, authorized bool) (*http.Response, envelope) {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, server.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if authorized {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("failed to decode envelope: %v", err)
		}
		return resp, env
	}

	resp, _ := do(http.MethodGet, "/cart", "", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, env := do(http.MethodPost, "/cart/items", `{"productId": `+strconv.FormatInt(productID, 10)+`, "quantity": 2}`, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 adding to cart, got %d: %s", resp.StatusCode, env.Message)
	}

	checkoutBody := `{"deliveryAddress": "12 Harbor Lane", "deliveryPhone": "+62-812", "deliveryName": "Ade", "paymentMethod": "cod"}`
	resp, env = do(http.MethodPost, "/orders", checkoutBody, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating order, got %d: %s", resp.StatusCode, env.Message)
	}
	if !env.Success {
		t.Fatal("expected success=true on order creation")
	}

	var order domain.Order
	if err := json.Unmarshal(env.Data, &order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if order.OrderNumber == "" {
		t.Fatal("expected order number to be set")
	}

	resp, env = do(http.MethodGet, "/orders/status/"+order.OrderNumber, "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on public status lookup, got %d", resp.StatusCode)
	}

	var view domain.OrderStatusView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("failed to decode status view: %v", err)
	}
	if view.Status != domain.OrderStatusPending {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusPending, view.Status)
	}
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestWorkerConfirmsOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Face Masks", "6.00", 30)

	const userID int64 = 15
	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Add(ctx, userID, productID, 2); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	order, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := worker.NewNotifier(emailServer.URL, orderRepo, &http.Client{Timeout: 10 * time.Second}, logger)

	event := domain.OrderCreatedEvent{
		EventID:       "evt-1",
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		CustomerEmail: "customer@example.com",
		TotalAmount:   order.TotalAmount,
		Timestamp:     order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	if err := notifier.HandleOrderCreated(ctx, payload); err != nil {
		t.Fatalf("worker handler failed: %v", err)
	}

	confirmed, err := orderRepo.GetByID(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if confirmed.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusConfirmed, confirmed.Status)
	}

	emails := emailCap.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if !strings.Contains(emails[0]["subject"], order.OrderNumber) {
		t.Fatalf("expected subject to contain order number, got %q", emails[0]["subject"])
	}
}

func TestWorkerSkipsConfirmingCancelledOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db := OpenDB(t, pg.ConnStr)
	defer func() { _ = db.Close() }()

	productID := insertProduct(t, db, "Eye Drops", "11.00", 10)

	const userID int64 = 16
	cartRepo := cart.NewRepository(db)
	if _, err := cartRepo.Add(ctx, userID, productID, 1); err != nil {
		t.Fatalf("failed to add to cart: %v", err)
	}

	orderRepo := orders.NewRepository(db)
	order, err := orderRepo.CreateFromCart(ctx, userID, checkoutInput())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := orderRepo.Cancel(ctx, userID, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := worker.NewNotifier(emailServer.URL, orderRepo, &http.Client{Timeout: 10 * time.Second}, logger)

	event := domain.OrderCreatedEvent{
		EventID:       "evt-2",
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		CustomerEmail: "customer@example.com",
		TotalAmount:   order.TotalAmount,
		Timestamp:     order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	// The order was cancelled before the event arrived; the handler must not
	// error, or the consumer would redeliver forever.
	if err := notifier.HandleOrderCreated(ctx, payload); err != nil {
		t.Fatalf("expected handler to swallow stale event, got %v", err)
	}

	final, err := orderRepo.GetByID(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if final.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status to stay %s, got %s", domain.OrderStatusCancelled, final.Status)
	}
}

func TestKafkaEventRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	producer := messaging.NewProducer(brokers, messaging.TopicOrderCreated)
	defer func() { _ = producer.Close() }()

	sent := domain.OrderCreatedEvent{
		EventID:     "evt-roundtrip",
		OrderID:     101,
		OrderNumber: "ORD-1756400000000-042",
		UserID:      42,
		TotalAmount: decimal.RequireFromString("19.99"),
		Timestamp:   time.Now().UTC(),
	}
	if err := producer.Publish(ctx, sent.OrderNumber, sent); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, messaging.GroupNotifier)
	defer func() { _ = consumer.Close() }()

	consumeCtx, stopConsuming := context.WithCancel(ctx)
	var received domain.OrderCreatedEvent
	err := consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
		if err := json.Unmarshal(payload, &received); err != nil {
			return err
		}
		stopConsuming()
		return nil
	})
	if err != nil && consumeCtx.Err() == nil {
		t.Fatalf("consumer error: %v", err)
	}

	if received.EventID != sent.EventID {
		t.Fatalf("expected event id %q, got %q", sent.EventID, received.EventID)
	}
	if received.OrderNumber != sent.OrderNumber {
		t.Fatalf("expected order number %q, got %q", sent.OrderNumber, received.OrderNumber)
	}
	if !received.TotalAmount.Equal(sent.TotalAmount) {
		t.Fatalf("expected total %s, got %s", sent.TotalAmount, received.TotalAmount)
	}
}

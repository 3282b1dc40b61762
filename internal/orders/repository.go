package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/wecure/medstore/internal/domain"
)

const (
	estimatedDeliveryWindow = 7 * 24 * time.Hour

	// Order-number collisions are rare (millisecond timestamp + random
	// suffix); a couple of retries is plenty.
	maxOrderNumberAttempts = 3
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type CheckoutInput struct {
	DeliveryAddress string
	DeliveryPhone   string
	DeliveryName    string
	PaymentMethod   string
	Notes           string
}

type cartLine struct {
	productID int64
	quantity  int
	price     decimal.Decimal
	product   domain.ProductSummary
	stock     int
}

// CreateFromCart turns the user's cart into an order: it validates stock,
// then atomically inserts the order and its items, decrements product stock,
// and clears the cart. On any failure nothing is persisted and the cart is
// left untouched.
//
// The whole transaction is retried with a fresh order number if the generated
// one collides with an existing order.
func (r *Repository) CreateFromCart(ctx context.Context, userID int64, input CheckoutInput) (*domain.Order, error) {
	if input.DeliveryAddress == "" || input.DeliveryPhone == "" || input.DeliveryName == "" || input.PaymentMethod == "" {
		return nil, domain.Validationf("Delivery address, phone, name, and payment method are required")
	}

	lines, err := r.loadCartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.Validationf("Cart is empty")
	}

	// Pre-validate against the stock read alongside the cart so the client
	// gets the offending product's name before any write. The conditional
	// decrement inside the transaction is the authoritative guard.
	totalAmount := decimal.Zero
	for _, line := range lines {
		if line.stock < line.quantity {
			return nil, domain.InsufficientStock(line.product.Name)
		}
		totalAmount = totalAmount.Add(line.price.Mul(decimal.NewFromInt(int64(line.quantity))))
	}
	totalAmount = totalAmount.Round(2)

	var order *domain.Order
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order, err = r.createOrderTx(ctx, userID, input, lines, totalAmount, GenerateOrderNumber())
		if err == nil {
			return order, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
	}

	return nil, err
}

func (r *Repository) createOrderTx(ctx context.Context, userID int64, input CheckoutInput,
	lines []cartLine, totalAmount decimal.Decimal, orderNumber string) (*domain.Order, error) {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order := &domain.Order{
		OrderNumber:       orderNumber,
		UserID:            userID,
		TotalAmount:       totalAmount,
		Status:            domain.OrderStatusPending,
		PaymentMethod:     input.PaymentMethod,
		PaymentStatus:     domain.PaymentStatusPending,
		DeliveryAddress:   input.DeliveryAddress,
		DeliveryPhone:     input.DeliveryPhone,
		DeliveryName:      input.DeliveryName,
		EstimatedDelivery: time.Now().UTC().Add(estimatedDeliveryWindow),
		Notes:             input.Notes,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (order_number, user_id, total_amount, status, payment_method,
		                    payment_status, delivery_address, delivery_phone, delivery_name,
		                    estimated_delivery, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, order.OrderNumber, order.UserID, order.TotalAmount, order.Status, order.PaymentMethod,
		order.PaymentStatus, order.DeliveryAddress, order.DeliveryPhone, order.DeliveryName,
		order.EstimatedDelivery, nullable(order.Notes)).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		item := domain.OrderItem{
			OrderID:    order.ID,
			ProductID:  line.productID,
			Quantity:   line.quantity,
			Price:      line.price,
			TotalPrice: line.price.Mul(decimal.NewFromInt(int64(line.quantity))).Round(2),
			Product:    &domain.ProductSummary{},
		}
		*item.Product = line.product

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price, total_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, item.OrderID, item.ProductID, item.Quantity, item.Price, item.TotalPrice).Scan(&item.ID)
		if err != nil {
			return nil, err
		}

		// Conditional decrement: zero rows affected means a concurrent
		// checkout took the stock between our read and this write.
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND stock >= $2
		`, line.productID, line.quantity)
		if err != nil {
			return nil, err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rowsAffected == 0 {
			return nil, domain.InsufficientStock(line.product.Name)
		}

		order.Items = append(order.Items, item)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) loadCartLines(ctx context.Context, userID int64) ([]cartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, c.quantity, c.price,
		       p.id, p.name, COALESCE(p.image, ''), p.category, p.stock
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []cartLine
	for rows.Next() {
		var line cartLine
		if err := rows.Scan(&line.productID, &line.quantity, &line.price,
			&line.product.ID, &line.product.Name, &line.product.Image, &line.product.Category,
			&line.stock); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// List returns one page of the user's orders, newest first, optionally
// filtered by status, together with the total match count for pagination.
func (r *Repository) List(ctx context.Context, userID int64, page, limit int, status domain.OrderStatus) ([]domain.Order, int64, error) {
	where := `WHERE user_id = $1`
	filterArgs := []any{userID}
	if status != "" {
		where += ` AND status = $2`
		filterArgs = append(filterArgs, status)
	}

	var totalItems int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, filterArgs...).Scan(&totalItems); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(filterArgs)+1, len(filterArgs)+2)
	args := append(filterArgs, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[int64]*domain.Order)
	var orderIDs []int64
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, totalItems, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.id`, pq.Array(orderIDs))
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, 0, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, *item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, totalItems, nil
}

// GetByID returns the order only when it belongs to the given user.
func (r *Repository) GetByID(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND user_id = $2`, orderID, userID)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NotFound("Order")
		}
		return nil, err
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}

	return order, itemRows.Err()
}

// Cancel marks the order cancelled and restores the stock its items
// decremented, in one transaction. Shipped, delivered and already-cancelled
// orders are rejected.
func (r *Repository) Cancel(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status domain.OrderStatus
	var orderNumber string
	err = tx.QueryRowContext(ctx, `
		SELECT status, order_number FROM orders
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`, orderID, userID).Scan(&status, &orderNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NotFound("Order")
		}
		return nil, err
	}

	if status == domain.OrderStatusCancelled {
		return nil, domain.InvalidState("Order is already cancelled")
	}
	if !domain.CanCancel(status) {
		return nil, domain.InvalidState("Cannot cancel order that is already shipped or delivered")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2`, domain.OrderStatusCancelled, orderID); err != nil {
		return nil, err
	}

	// Exact inverse of the checkout decrement.
	if _, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock + i.quantity, updated_at = NOW()
		FROM order_items i
		WHERE i.order_id = $1 AND p.id = i.product_id`, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.Order{
		ID:          orderID,
		OrderNumber: orderNumber,
		UserID:      userID,
		Status:      domain.OrderStatusCancelled,
	}, nil
}

// AdvanceStatus applies a forward fulfillment transition, refusing anything
// the status state machine forbids. Cancellation restores stock and must go
// through Cancel, never here.
func (r *Repository) AdvanceStatus(ctx context.Context, orderID int64, to domain.OrderStatus) error {
	if to == domain.OrderStatusCancelled {
		return domain.InvalidState("Cancellation must go through the cancel operation")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var from domain.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&from)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.NotFound("Order")
		}
		return err
	}

	if !domain.CanTransition(from, to) {
		return domain.InvalidState("Cannot move order from " + string(from) + " to " + string(to))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2`, to, orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// StatusByNumber serves the unauthenticated tracking projection.
func (r *Repository) StatusByNumber(ctx context.Context, orderNumber string) (*domain.OrderStatusView, error) {
	view := &domain.OrderStatusView{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, status, created_at, estimated_delivery
		FROM orders
		WHERE order_number = $1`, orderNumber).Scan(
		&view.ID, &view.OrderNumber, &view.Status, &view.CreatedAt, &view.EstimatedDelivery)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NotFound("Order")
		}
		return nil, err
	}

	return view, nil
}

const orderColumns = `id, order_number, user_id, total_amount, status, payment_method,
		       payment_status, delivery_address, delivery_phone, delivery_name,
		       estimated_delivery, COALESCE(notes, ''), created_at, updated_at`

const itemColumns = `i.id, i.order_id, i.product_id, i.quantity, i.price, i.total_price,
		       p.id, p.name, COALESCE(p.image, ''), p.category`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.TotalAmount,
		&order.Status, &order.PaymentMethod, &order.PaymentStatus,
		&order.DeliveryAddress, &order.DeliveryPhone, &order.DeliveryName,
		&order.EstimatedDelivery, &order.Notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func scanItem(row interface{ Scan(...any) error }) (*domain.OrderItem, error) {
	item := &domain.OrderItem{Product: &domain.ProductSummary{}}
	err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
		&item.Price, &item.TotalPrice,
		&item.Product.ID, &item.Product.Name, &item.Product.Image, &item.Product.Category)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

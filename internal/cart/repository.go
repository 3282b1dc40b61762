package cart

import (
	"context"
	"database/sql"

	"github.com/wecure/medstore/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const itemColumns = `c.id, c.user_id, c.product_id, c.quantity, c.price, c.created_at, c.updated_at,
		       p.id, p.name, COALESCE(p.image, ''), p.category`

func scanItem(row interface{ Scan(...any) error }) (*domain.CartItem, error) {
	item := &domain.CartItem{Product: &domain.ProductSummary{}}
	err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.Price,
		&item.CreatedAt, &item.UpdatedAt,
		&item.Product.ID, &item.Product.Name, &item.Product.Image, &item.Product.Category)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns the user's cart with product projections and the 2-decimal
// total of the snapshot prices.
func (r *Repository) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart := &domain.Cart{Items: []domain.CartItem{}}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	cart.TotalAmount = cart.Total()
	cart.ItemCount = len(cart.Items)
	return cart, nil
}

// Add puts quantity units of a product into the user's cart. An existing row
// for the same product is merged instead of duplicated, and the price
// snapshot is refreshed to the current catalog price.
func (r *Repository) Add(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	var (
		name     string
		stock    int
		isActive bool
		price    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT name, stock, is_active, price::text
		FROM products
		WHERE id = $1`, productID).Scan(&name, &stock, &isActive, &price)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NotFound("Product")
		}
		return nil, err
	}
	if !isActive {
		return nil, domain.NotFound("Product")
	}

	var existing int
	err = r.db.QueryRowContext(ctx, `
		SELECT quantity FROM carts
		WHERE user_id = $1 AND product_id = $2`, userID, productID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	newQuantity := existing + quantity
	if newQuantity > stock {
		return nil, domain.InsufficientStock(name)
	}

	// The unique (user_id, product_id) constraint keeps this a single row
	// even if two adds race past the read above.
	var itemID int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO carts (user_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = $3, price = $4, updated_at = NOW()
		RETURNING id`, userID, productID, newQuantity, price.String).Scan(&itemID)
	if err != nil {
		return nil, err
	}

	return r.getItem(ctx, userID, itemID)
}

// UpdateQuantity changes the quantity of a cart row the user owns. The price
// snapshot is deliberately left as it was at add time.
func (r *Repository) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (*domain.CartItem, error) {
	var (
		name  string
		stock int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT p.name, p.stock
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.id = $1 AND c.user_id = $2`, itemID, userID).Scan(&name, &stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NotFound("Cart item")
		}
		return nil, err
	}

	if quantity > stock {
		return nil, domain.InsufficientStock(name)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE carts SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3`, quantity, itemID, userID)
	if err != nil {
		return nil, err
	}

	return r.getItem(ctx, userID, itemID)
}

// Remove deletes a single cart row the user owns.
func (r *Repository) Remove(ctx context.Context, userID, itemID int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM carts WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.NotFound("Cart item")
	}

	return nil
}

// Clear empties the user's cart.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	return err
}

func (r *Repository) getItem(ctx context.Context, userID, itemID int64) (*domain.CartItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.id = $1 AND c.user_id = $2`, itemID, userID)

	item, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NotFound("Cart item")
		}
		return nil, err
	}

	return item, nil
}

// Package pgstore is the PostgreSQL system of record: catalog products,
// carts, orders, and the archived history of auction bids and closes.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

var (
	ErrProductNotFound = errors.New("database: product not found")
	ErrOrderNotFound   = errors.New("database: order not found")
	ErrOrderNotPending = errors.New("database: order is not pending")
	// ErrProductUnavailable means a product in a paid order was already
	// sold to someone else; the whole payment apply is rolled back.
	ErrProductUnavailable = errors.New("database: product no longer available")
)

// Client wraps the PostgreSQL database connection
type Client struct {
	db *sql.DB
}

// NewClient creates a new PostgreSQL client
func NewClient(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{db: db}, nil
}

// InitSchema creates the necessary database tables
func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		image_url TEXT,
		price DECIMAL(10, 2) NOT NULL,
		in_stock BOOLEAN DEFAULT TRUE,
		is_sold_out BOOLEAN DEFAULT FALSE,
		sold_at TIMESTAMP,
		sold_to VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cart_lines (
		user_id VARCHAR(255) NOT NULL,
		product_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		image_url TEXT,
		unit_price DECIMAL(10, 2) NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 1),
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(255) PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		subtotal DECIMAL(10, 2) NOT NULL,
		shipping_fee DECIMAL(10, 2) NOT NULL,
		total DECIMAL(10, 2) NOT NULL,
		status VARCHAR(50) DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_lines (
		order_id VARCHAR(255) NOT NULL,
		product_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		image_url TEXT,
		unit_price DECIMAL(10, 2) NOT NULL,
		quantity INT NOT NULL,
		PRIMARY KEY (order_id, product_id),
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS auction_items (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		base_price DECIMAL(10, 2) NOT NULL,
		current_bid DECIMAL(10, 2),
		highest_bidder VARCHAR(255),
		bidder_email VARCHAR(255),
		sold_out BOOLEAN DEFAULT FALSE,
		closed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(255) PRIMARY KEY,
		item_id VARCHAR(255) NOT NULL,
		bidder_name VARCHAR(255) NOT NULL,
		bidder_email VARCHAR(255),
		amount DECIMAL(10, 2) NOT NULL,
		bid_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bids_item_id ON bids(item_id);
	CREATE INDEX IF NOT EXISTS idx_bids_bid_at ON bids(bid_at);
	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// --- catalog ---

// GetProduct returns a product by id. Returns ErrProductNotFound when
// it does not exist.
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `
		SELECT id, name, description, image_url, price, in_stock, is_sold_out, sold_at, sold_to, created_at, updated_at
		FROM products
		WHERE id = $1`

	p, err := scanProduct(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListProducts returns the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]*models.Product, error) {
	query := `
		SELECT id, name, description, image_url, price, in_stock, is_sold_out, sold_at, sold_to, created_at, updated_at
		FROM products
		ORDER BY created_at DESC`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateProduct inserts a catalog product.
func (c *Client) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, image_url, price, in_stock, is_sold_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := c.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Description, p.ImageURL, p.Price, p.InStock, p.IsSoldOut,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdateProduct applies a patch to a product. Nil patch fields are left
// unchanged.
func (c *Client) UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    image_url = COALESCE($4, image_url),
		    price = COALESCE($5, price),
		    in_stock = COALESCE($6, in_stock),
		    is_sold_out = COALESCE($7, is_sold_out),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	result, err := c.db.ExecContext(ctx, query,
		id, patch.Name, patch.Description, patch.ImageURL, patch.Price, patch.InStock, patch.IsSoldOut)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrProductNotFound
	}
	return c.GetProduct(ctx, id)
}

// --- cart ---

// GetCartLines returns the user's cart lines.
func (c *Client) GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	query := `
		SELECT product_id, name, image_url, unit_price, quantity, added_at
		FROM cart_lines
		WHERE user_id = $1
		ORDER BY added_at`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.ImageURL, &line.UnitPrice, &line.Quantity, &line.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// UpsertCartLine adds quantity to an existing line or inserts a new one.
func (c *Client) UpsertCartLine(ctx context.Context, userID string, line models.CartLine) error {
	query := `
		INSERT INTO cart_lines (user_id, product_id, name, image_url, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`

	if _, err := c.db.ExecContext(ctx, query,
		userID, line.ProductID, line.Name, line.ImageURL, line.UnitPrice, line.Quantity); err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return nil
}

// SetCartLineQuantity sets a line's quantity. A quantity of zero or
// less removes the row; zero-quantity lines are never stored.
func (c *Client) SetCartLineQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return c.RemoveCartLine(ctx, userID, productID)
	}
	query := `UPDATE cart_lines SET quantity = $3 WHERE user_id = $1 AND product_id = $2`
	if _, err := c.db.ExecContext(ctx, query, userID, productID, quantity); err != nil {
		return fmt.Errorf("failed to set cart line quantity: %w", err)
	}
	return nil
}

// RemoveCartLine deletes a line from the user's cart.
func (c *Client) RemoveCartLine(ctx context.Context, userID, productID string) error {
	query := `DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`
	if _, err := c.db.ExecContext(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	return nil
}

// --- orders ---

// CreateOrder persists an order snapshot with its lines in one
// transaction.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (id, user_id, subtotal, shipping_fee, total, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, orderQuery,
		order.ID, order.UserID, order.Subtotal, order.ShippingFee, order.Total, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_lines (order_id, product_id, name, image_url, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, line := range order.Lines {
		if _, err := tx.ExecContext(ctx, lineQuery,
			order.ID, line.ProductID, line.Name, line.ImageURL, line.UnitPrice, line.Quantity); err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOrder returns an order with its lines. Returns ErrOrderNotFound
// when it does not exist.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	query := `
		SELECT id, user_id, subtotal, shipping_fee, total, status, created_at, updated_at
		FROM orders
		WHERE id = $1`

	order := &models.Order{}
	err := c.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID, &order.UserID, &order.Subtotal, &order.ShippingFee, &order.Total,
		&order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	lines, err := c.getOrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

func (c *Client) getOrderLines(ctx context.Context, orderID string) ([]models.CartLine, error) {
	query := `
		SELECT product_id, name, image_url, unit_price, quantity
		FROM order_lines
		WHERE order_id = $1`

	rows, err := c.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.ImageURL, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// MarkOrderNeedsReconciliation flags an order whose payment was
// confirmed but whose inventory mutation failed. Such orders are
// resolved manually, never silently dropped.
func (c *Client) MarkOrderNeedsReconciliation(ctx context.Context, orderID string) error {
	query := `UPDATE orders SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := c.db.ExecContext(ctx, query, orderID, models.OrderStatusNeedsReconciliation); err != nil {
		return fmt.Errorf("failed to flag order for reconciliation: %w", err)
	}
	return nil
}

// ExecutePaymentSuccess applies a confirmed payment in one transaction:
// every product on the order is locked, checked, and marked sold, the
// order flips to paid, and the buyer's cart is cleared. Any failure
// rolls the whole thing back; no partial apply is ever visible.
func (c *Client) ExecutePaymentSuccess(ctx context.Context, orderID string, paidAt time.Time) (*models.Order, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order := &models.Order{}
	orderQuery := `
		SELECT id, user_id, subtotal, shipping_fee, total, status, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE`
	err = tx.QueryRowContext(ctx, orderQuery, orderID).Scan(
		&order.ID, &order.UserID, &order.Subtotal, &order.ShippingFee, &order.Total,
		&order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	lines, err := c.getOrderLinesTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	for _, line := range lines {
		var sold bool
		lockQuery := `SELECT is_sold_out FROM products WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, line.ProductID).Scan(&sold); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, line.ProductID)
			}
			return nil, fmt.Errorf("failed to lock product %s: %w", line.ProductID, err)
		}
		if sold {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, line.ProductID)
		}

		markQuery := `
			UPDATE products
			SET in_stock = FALSE, is_sold_out = TRUE, sold_at = $2, sold_to = $3, updated_at = CURRENT_TIMESTAMP
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, markQuery, line.ProductID, paidAt, order.UserID); err != nil {
			return nil, fmt.Errorf("failed to mark product %s sold: %w", line.ProductID, err)
		}
	}

	statusQuery := `UPDATE orders SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := tx.ExecContext(ctx, statusQuery, orderID, models.OrderStatusPaid); err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	// Cart is cleared in the same transaction, after the mark-as-sold
	// step, so readers never see a sold product still sitting in a cart.
	clearQuery := `DELETE FROM cart_lines WHERE user_id = $1`
	if _, err := tx.ExecContext(ctx, clearQuery, order.UserID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.Status = models.OrderStatusPaid
	return order, nil
}

func (c *Client) getOrderLinesTx(ctx context.Context, tx *sql.Tx, orderID string) ([]models.CartLine, error) {
	query := `
		SELECT product_id, name, image_url, unit_price, quantity
		FROM order_lines
		WHERE order_id = $1
		ORDER BY product_id`

	rows, err := tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.ImageURL, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// --- auction archive ---

// InsertBid archives an accepted bid. Idempotent on bid id, so
// JetStream redeliveries are harmless.
func (c *Client) InsertBid(ctx context.Context, event *models.BidEvent) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_name, bidder_email, amount, bid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	if _, err := c.db.ExecContext(ctx, query,
		event.BidID, event.ItemID, event.BidderName, event.BidderEmail, event.Amount, event.Timestamp); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// UpsertAuctionLeader records the item's current leader in the archive.
func (c *Client) UpsertAuctionLeader(ctx context.Context, event *models.BidEvent) error {
	query := `
		INSERT INTO auction_items (id, name, base_price, current_bid, highest_bidder, bidder_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET current_bid = EXCLUDED.current_bid,
		              highest_bidder = EXCLUDED.highest_bidder,
		              bidder_email = EXCLUDED.bidder_email,
		              updated_at = CURRENT_TIMESTAMP`

	if _, err := c.db.ExecContext(ctx, query,
		event.ItemID, "Item "+event.ItemID, event.PreviousBid, event.Amount, event.BidderName, event.BidderEmail); err != nil {
		return fmt.Errorf("failed to upsert auction leader: %w", err)
	}
	return nil
}

// MarkAuctionClosed records the terminal state of an item.
func (c *Client) MarkAuctionClosed(ctx context.Context, event *models.AuctionClosedEvent) error {
	query := `
		INSERT INTO auction_items (id, name, base_price, current_bid, highest_bidder, bidder_email, sold_out, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		ON CONFLICT (id)
		DO UPDATE SET sold_out = TRUE,
		              closed_at = EXCLUDED.closed_at,
		              updated_at = CURRENT_TIMESTAMP`

	if _, err := c.db.ExecContext(ctx, query,
		event.ItemID, "Item "+event.ItemID, event.FinalBid, event.FinalBid,
		event.WinnerName, event.WinnerEmail, event.ClosedAt); err != nil {
		return fmt.Errorf("failed to mark auction closed: %w", err)
	}
	return nil
}

// GetBidHistory retrieves the archived bid history for an item.
func (c *Client) GetBidHistory(ctx context.Context, itemID string, limit int) ([]*models.Bid, error) {
	query := `
		SELECT id, item_id, bidder_name, bidder_email, amount, bid_at
		FROM bids
		WHERE item_id = $1
		ORDER BY bid_at DESC
		LIMIT $2`

	rows, err := c.db.QueryContext(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid := &models.Bid{}
		var amount decimal.Decimal
		if err := rows.Scan(&bid.ID, &bid.ItemID, &bid.BidderName, &bid.BidderEmail, &amount, &bid.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bid.Amount, _ = amount.Float64()
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var soldAt sql.NullTime
	var soldTo sql.NullString
	var description, imageURL sql.NullString
	err := row.Scan(&p.ID, &p.Name, &description, &imageURL, &p.Price,
		&p.InStock, &p.IsSoldOut, &soldAt, &soldTo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.ImageURL = imageURL.String
	if soldAt.Valid {
		t := soldAt.Time
		p.SoldAt = &t
	}
	p.SoldTo = soldTo.String
	return p, nil
}

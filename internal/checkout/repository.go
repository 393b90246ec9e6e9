package checkout

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitienda/mitienda/internal/catalog"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// TxRepository exposes the operations available inside a checkout or
// cancellation transaction.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderLines(ctx context.Context, orderID int64, lines []OrderLine) error
	DecrementStock(ctx context.Context, variationID int64, qty int) error
	RestoreStock(ctx context.Context, variationID int64, qty int) error
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
	SetPaid(ctx context.Context, id int64, paid bool, method string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction. Any error
// rolls the whole transaction back, stock decrements included.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, user_id, status, paid, payment_method, total,
	full_name, email, phone, address1, address2, city, province, postal_code, country, notes,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Paid, &o.PaymentMethod, &o.Total,
		&o.Shipping.FullName, &o.Shipping.Email, &o.Shipping.Phone,
		&o.Shipping.Address1, &o.Shipping.Address2, &o.Shipping.City,
		&o.Shipping.Province, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Shipping.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, paid, payment_method, total,
		   full_name, email, phone, address1, address2, city, province, postal_code, country, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		o.UserID, o.Status, o.Paid, o.PaymentMethod, o.Total,
		o.Shipping.FullName, o.Shipping.Email, o.Shipping.Phone,
		o.Shipping.Address1, o.Shipping.Address2, o.Shipping.City,
		o.Shipping.Province, o.Shipping.PostalCode, o.Shipping.Country,
		o.Shipping.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderLines(ctx context.Context, orderID int64, lines []OrderLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx,
			`INSERT INTO order_lines (order_id, variation_id, product_name, variation_label, qty, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, line.VariationID, line.ProductName, line.VariationLabel, line.Qty, line.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

// DecrementStock subtracts qty atomically. The stock guard in the WHERE
// clause makes oversell impossible: a concurrent order that drained the
// stock leaves zero rows affected here.
func (r *txRepo) DecrementStock(ctx context.Context, variationID int64, qty int) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE product_variations SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		variationID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrInsufficientStock
	}
	return nil
}

func (r *txRepo) RestoreStock(ctx context.Context, variationID int64, qty int) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE product_variations SET stock = stock + $2 WHERE id = $1`,
		variationID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	o.Lines, err = scanLines(ctx, r.tx, id)
	return o, err
}

func (r *txRepo) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) SetPaid(ctx context.Context, id int64, paid bool, method string) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE orders SET paid = $2, payment_method = $3, updated_at = now() WHERE id = $1`,
		id, paid, method)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanLines(ctx context.Context, q queryer, orderID int64) ([]OrderLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, variation_id, product_name, variation_label, qty, unit_price
		 FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.VariationID, &l.ProductName,
			&l.VariationLabel, &l.Qty, &l.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetOrder loads one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	o.Lines, err = scanLines(ctx, r.db, id)
	return o, err
}

// ListOrders returns orders matching filter, newest first, with the
// unpaged total. Lines are not loaded for listings.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	where := ""
	args := []any{}
	argCount := 1

	if filter.UserID != nil {
		where += " AND user_id = $" + strconv.Itoa(argCount)
		args = append(args, *filter.UserID)
		argCount++
	}
	if filter.Status != nil {
		where += " AND status = $" + strconv.Itoa(argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argCount) +
		` OFFSET $` + strconv.Itoa(argCount+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

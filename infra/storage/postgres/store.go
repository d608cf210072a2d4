// Package postgres stores orders and payment transactions in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/order"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const createSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'REJECTED', 'CANCELLED')),
	total NUMERIC(18, 2) NOT NULL,
	currency TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	delivery_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	provider TEXT NOT NULL,
	provider_txn_no TEXT NOT NULL,
	attempt_key TEXT NOT NULL,
	amount NUMERIC(18, 2) NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	result_code TEXT NOT NULL,
	success BOOLEAN NOT NULL DEFAULT FALSE,
	bank_code TEXT NOT NULL DEFAULT '',
	bank_txn_no TEXT NOT NULL DEFAULT '',
	card_type TEXT NOT NULL DEFAULT '',
	paid_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_attempt ON transactions(order_id, provider, attempt_key, result_code);
CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions(order_id, seq);
`

const selectOrder = `
SELECT id, status, total::text, currency, customer_id, customer_email, delivery_id, created_at, updated_at
FROM orders
WHERE id = $1;
`

const upsertOrder = `
INSERT INTO orders (id, status, total, currency, customer_id, customer_email, delivery_id, created_at, updated_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	total = EXCLUDED.total,
	currency = EXCLUDED.currency,
	customer_id = EXCLUDED.customer_id,
	customer_email = EXCLUDED.customer_email,
	delivery_id = EXCLUDED.delivery_id,
	updated_at = EXCLUDED.updated_at;
`

const casOrderStatus = `
UPDATE orders
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2;
`

const insertTransaction = `
INSERT INTO transactions (
	id, order_id, provider, provider_txn_no, attempt_key, amount, content, result_code, success,
	bank_code, bank_txn_no, card_type, paid_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14);
`

const selectTransactions = `
SELECT id, order_id, provider, provider_txn_no, amount::text, content, result_code, success,
	bank_code, bank_txn_no, card_type, paid_at, created_at
FROM transactions
WHERE order_id = $1
ORDER BY seq;
`

const selectLatestSuccessful = `
SELECT id, order_id, provider, provider_txn_no, amount::text, content, result_code, success,
	bank_code, bank_txn_no, card_type, paid_at, created_at
FROM transactions
WHERE order_id = $1 AND success
ORDER BY seq DESC
LIMIT 1;
`

// Store implements order.Repository and order.TransactionRepository on a pgx pool
type Store struct {
	conn *pgxpool.Pool
	now  func() time.Time
}

var (
	_ order.Repository            = (*Store)(nil)
	_ order.TransactionRepository = (*Store)(nil)
)

// Open connects to databaseURL and creates the schema
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.Connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("PostgreSQL storage initialized", logger.LogContext{
		Fields: map[string]any{"host": pool.Config().ConnConfig.Host},
	})
	return &Store{conn: pool, now: time.Now}, nil
}

// Close releases the pool
func (s *Store) Close() {
	s.conn.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Get returns the order or order.ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o             order.Order
		status, total string
	)
	err := s.conn.QueryRow(ctx, selectOrder, id).Scan(
		&o.ID, &status, &total, &o.Currency, &o.CustomerID, &o.CustomerEmail, &o.DeliveryID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conn.QueryRow: %w", err)
	}

	o.Status = order.Status(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s has invalid total %q: %w", id, total, err)
	}
	return &o, nil
}

// Save creates or replaces an order
func (s *Store) Save(ctx context.Context, o *order.Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("order %s has invalid status %q", o.ID, o.Status)
	}
	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	_, err := s.conn.Exec(ctx, upsertOrder,
		o.ID, string(o.Status), o.Total.String(), o.Currency, o.CustomerID, o.CustomerEmail, o.DeliveryID,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	return nil
}

type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *Store) compareAndSet(ctx context.Context, db executor, id string, from, to order.Status) (bool, error) {
	tag, err := db.Exec(ctx, casOrderStatus, id, string(from), string(to), s.now())
	if err != nil {
		return false, fmt.Errorf("conn.Exec: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSetStatus moves the order to `to` only while its status is still `from`
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, from, to order.Status) (bool, error) {
	ok, err := s.compareAndSet(ctx, s.conn, id, from, to)
	if err != nil {
		return false, err
	}
	if !ok {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
	}
	return ok, nil
}

func (s *Store) insert(ctx context.Context, db executor, tx *order.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	_, err := db.Exec(ctx, insertTransaction,
		tx.ID, tx.OrderID, tx.Provider, tx.ProviderTxnNo, tx.DedupKey(), tx.Amount.String(), tx.Content, tx.ResultCode, tx.Success,
		tx.BankCode, tx.BankTxnNo, tx.CardType, tx.PaidAt, tx.CreatedAt)
	if isUniqueViolation(err) {
		return order.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	return nil
}

// Append stores a transaction; a repeated provider notification yields order.ErrDuplicate
func (s *Store) Append(ctx context.Context, tx *order.Transaction) error {
	return s.insert(ctx, s.conn, tx)
}

// ApplyPayment updates the order status and stores tx in one database transaction
func (s *Store) ApplyPayment(ctx context.Context, orderID string, from, to order.Status, tx *order.Transaction) (bool, error) {
	dbtx, err := s.conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("conn.Begin: %w", err)
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	ok, err := s.compareAndSet(ctx, dbtx, orderID, from, to)
	if err != nil || !ok {
		return false, err
	}
	if err := s.insert(ctx, dbtx, tx); err != nil {
		return false, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return false, fmt.Errorf("tx.Commit: %w", err)
	}
	return true, nil
}

// ListByOrder returns the transactions of an order, oldest first
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]order.Transaction, error) {
	rows, err := s.conn.Query(ctx, selectTransactions, orderID)
	if err != nil {
		return nil, fmt.Errorf("conn.Query: %w", err)
	}
	defer rows.Close()

	var out []order.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return out, nil
}

// LatestSuccessful returns the newest successful transaction or order.ErrNotFound
func (s *Store) LatestSuccessful(ctx context.Context, orderID string) (*order.Transaction, error) {
	tx, err := scanTransaction(s.conn.QueryRow(ctx, selectLatestSuccessful, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	return tx, err
}

func scanTransaction(row pgx.Row) (*order.Transaction, error) {
	var (
		tx     order.Transaction
		amount string
	)
	err := row.Scan(&tx.ID, &tx.OrderID, &tx.Provider, &tx.ProviderTxnNo, &amount, &tx.Content, &tx.ResultCode,
		&tx.Success, &tx.BankCode, &tx.BankTxnNo, &tx.CardType, &tx.PaidAt, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("rows.Scan: %w", err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", tx.ID, amount, err)
	}
	return &tx, nil
}

// Package sqlite stores orders and payment transactions in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/order"
	"github.com/shopspring/decimal"
)

const (
	timeLayout = time.RFC3339Nano
	maxRetries = 3
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'REJECTED', 'CANCELLED')),
	total TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	delivery_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	provider TEXT NOT NULL,
	provider_txn_no TEXT NOT NULL,
	attempt_key TEXT NOT NULL,
	amount TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	result_code TEXT NOT NULL,
	success INTEGER NOT NULL DEFAULT 0,
	bank_code TEXT NOT NULL DEFAULT '',
	bank_txn_no TEXT NOT NULL DEFAULT '',
	card_type TEXT NOT NULL DEFAULT '',
	paid_at TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_attempt ON transactions(order_id, provider, attempt_key, result_code);
CREATE INDEX IF NOT EXISTS idx_transactions_order ON transactions(order_id);
`

// Store implements order.Repository and order.TransactionRepository on SQLite
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var (
	_ order.Repository            = (*Store)(nil)
	_ order.TransactionRepository = (*Store)(nil)
)

// Open creates the database file if needed, switches it to WAL mode and creates the schema
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// immediate transactions take the write lock up front so compare-and-set cannot interleave
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}

	logger.Info("SQLite storage initialized", logger.LogContext{
		Fields: map[string]any{"path": dbPath, "journal_mode": journalMode},
	})
	return &Store{db: db, path: dbPath, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isBusy(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// retry runs op again with exponential backoff while the database reports it is busy
func (s *Store) retry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := op()
		if err == nil || !isBusy(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}

		backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
		logger.Debug("SQLite busy, retrying", logger.LogContext{
			Fields: map[string]any{"backoff_ms": backoff.Milliseconds(), "attempt": attempt + 1},
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", maxRetries+1, lastErr)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(timeLayout, raw)
}

// Get returns the order or order.ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o                    order.Order
		status, total        string
		createdAt, updatedAt string
	)
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, status, total, currency, customer_id, customer_email, delivery_id, created_at, updated_at
			FROM orders WHERE id = ?`, id).
			Scan(&o.ID, &status, &total, &o.Currency, &o.CustomerID, &o.CustomerEmail, &o.DeliveryID, &createdAt, &updatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	o.Status = order.Status(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s has invalid total %q: %w", id, total, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
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

	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO orders (id, status, total, currency, customer_id, customer_email, delivery_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				total = excluded.total,
				currency = excluded.currency,
				customer_id = excluded.customer_id,
				customer_email = excluded.customer_email,
				delivery_id = excluded.delivery_id,
				updated_at = excluded.updated_at`,
			o.ID, string(o.Status), o.Total.String(), o.Currency, o.CustomerID, o.CustomerEmail, o.DeliveryID,
			formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save order %s: %w", o.ID, err)
		}
		return nil
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) compareAndSet(ctx context.Context, db execer, id string, from, to order.Status) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(s.now()), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompareAndSetStatus moves the order to `to` only while its status is still `from`
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, from, to order.Status) (bool, error) {
	var ok bool
	err := s.retry(ctx, func() error {
		var err error
		ok, err = s.compareAndSet(ctx, s.db, id, from, to)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	if !ok {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
	}
	return ok, nil
}

func insertTransaction(ctx context.Context, db execer, tx *order.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, order_id, provider, provider_txn_no, attempt_key, amount, content, result_code, success,
			bank_code, bank_txn_no, card_type, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OrderID, tx.Provider, tx.ProviderTxnNo, tx.DedupKey(), tx.Amount.String(), tx.Content, tx.ResultCode, tx.Success,
		tx.BankCode, tx.BankTxnNo, tx.CardType, formatTime(tx.PaidAt), formatTime(tx.CreatedAt))
	if isUniqueViolation(err) {
		return order.ErrDuplicate
	}
	return err
}

// Append stores a transaction; a repeated provider notification yields order.ErrDuplicate
func (s *Store) Append(ctx context.Context, tx *order.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	err := s.retry(ctx, func() error {
		return insertTransaction(ctx, s.db, tx)
	})
	if err != nil && !errors.Is(err, order.ErrDuplicate) {
		return fmt.Errorf("failed to store transaction for order %s: %w", tx.OrderID, err)
	}
	return err
}

// ApplyPayment updates the order status and stores tx in one database transaction
func (s *Store) ApplyPayment(ctx context.Context, orderID string, from, to order.Status, tx *order.Transaction) (bool, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}

	var applied bool
	err := s.retry(ctx, func() error {
		applied = false
		dbtx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = dbtx.Rollback() }()

		ok, err := s.compareAndSet(ctx, dbtx, orderID, from, to)
		if err != nil || !ok {
			return err
		}
		if err := insertTransaction(ctx, dbtx, tx); err != nil {
			return err
		}
		if err := dbtx.Commit(); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrDuplicate) {
			return false, err
		}
		return false, fmt.Errorf("failed to apply payment to order %s: %w", orderID, err)
	}
	return applied, nil
}

// ListByOrder returns the transactions of an order, oldest first
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]order.Transaction, error) {
	var out []order.Transaction
	err := s.retry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, order_id, provider, provider_txn_no, amount, content, result_code, success,
				bank_code, bank_txn_no, card_type, paid_at, created_at
			FROM transactions WHERE order_id = ? ORDER BY rowid`, orderID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			tx, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			out = append(out, *tx)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of order %s: %w", orderID, err)
	}
	return out, nil
}

// LatestSuccessful returns the newest successful transaction or order.ErrNotFound
func (s *Store) LatestSuccessful(ctx context.Context, orderID string) (*order.Transaction, error) {
	var tx *order.Transaction
	err := s.retry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, order_id, provider, provider_txn_no, amount, content, result_code, success,
				bank_code, bank_txn_no, card_type, paid_at, created_at
			FROM transactions WHERE order_id = ? AND success = 1 ORDER BY rowid DESC LIMIT 1`, orderID)
		var err error
		tx, err = scanTransaction(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment of order %s: %w", orderID, err)
	}
	return tx, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*order.Transaction, error) {
	var (
		tx                order.Transaction
		amount            string
		paidAt, createdAt string
	)
	if err := row.Scan(&tx.ID, &tx.OrderID, &tx.Provider, &tx.ProviderTxnNo, &amount, &tx.Content, &tx.ResultCode,
		&tx.Success, &tx.BankCode, &tx.BankTxnNo, &tx.CardType, &paidAt, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", tx.ID, amount, err)
	}
	if tx.PaidAt, err = parseTime(paidAt); err != nil {
		return nil, err
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &tx, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/finledger/api/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	color      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	category_id TEXT NOT NULL REFERENCES categories(id),
	amount      TEXT NOT NULL,
	type        TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	is_deleted  INTEGER NOT NULL DEFAULT 0,
	deleted_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_created
	ON transactions(owner_id, created_at);
`

// SQLiteStore implements TransactionReader over a local SQLite database.
// Timestamps are stored as unix nanoseconds so range scans stay exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FetchTransactions implements TransactionReader.
func (s *SQLiteStore) FetchTransactions(ctx context.Context, ownerID string, start, end time.Time) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.amount, t.type, c.name, c.color, t.note, t.created_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = ? AND t.is_deleted = 0
		  AND t.created_at >= ? AND t.created_at <= ?
		ORDER BY t.created_at`,
		ownerID, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var (
			txn       model.Transaction
			amount    string
			createdAt int64
		)
		if err := rows.Scan(&txn.ID, &amount, &txn.Type, &txn.CategoryName, &txn.CategoryColor, &txn.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		txn.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount for transaction %s: %v", ErrUnavailable, txn.ID, err)
		}
		txn.CreatedAt = time.Unix(0, createdAt).UTC()
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return txns, nil
}

// CreateCategory inserts a category and returns its id.
func (s *SQLiteStore) CreateCategory(ctx context.Context, ownerID, name, color string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, ownerID, name, color, time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

// CreateTransaction inserts a ledger entry and returns its id.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, ownerID, categoryID string, amount decimal.Decimal, txnType model.TransactionType, note string, createdAt time.Time) (string, error) {
	if !txnType.Valid() {
		return "", fmt.Errorf("invalid transaction type %q", txnType)
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, category_id, amount, type, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, categoryID, amount.String(), txnType, note, createdAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// DeleteTransaction soft-deletes an entry; it no longer appears in reads.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 1, deleted_at = ?
		WHERE id = ? AND owner_id = ? AND is_deleted = 0`,
		time.Now().UnixNano(), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

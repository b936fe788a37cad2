package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/api/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTransaction(t *testing.T, s *SQLiteStore, ownerID, category, color string, amount int64, txnType model.TransactionType, at time.Time) string {
	t.Helper()
	ctx := context.Background()
	catID, err := s.CreateCategory(ctx, ownerID, category, color)
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	id, err := s.CreateTransaction(ctx, ownerID, catID, decimal.NewFromInt(amount), txnType, "", at)
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	return id
}

func TestFetchTransactions_RangeAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTransaction(t, s, "u1", "Salary", "#12b886", 3000, model.TransactionIncome, time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))
	seedTransaction(t, s, "u1", "Rent", "#fa5252", 900, model.TransactionExpense, time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC))
	// Outside the range.
	seedTransaction(t, s, "u1", "Misc", "#aaaaaa", 10, model.TransactionExpense, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)

	txns, err := s.FetchTransactions(ctx, "u1", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	// Ordered by creation time.
	if txns[0].CategoryName != "Rent" || txns[1].CategoryName != "Salary" {
		t.Errorf("unexpected order: %s, %s", txns[0].CategoryName, txns[1].CategoryName)
	}
	if !txns[1].Amount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("amount = %s, want 3000", txns[1].Amount)
	}
	if txns[0].CategoryColor != "#fa5252" {
		t.Errorf("category color = %s", txns[0].CategoryColor)
	}
}

func TestFetchTransactions_OwnerScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTransaction(t, s, "u1", "Rent", "#fa5252", 900, model.TransactionExpense, time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC))

	txns, err := s.FetchTransactions(ctx, "u2",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected no transactions for other owner, got %d", len(txns))
	}
}

func TestFetchTransactions_SoftDeletedExcluded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 7, 10, 8, 0, 0, 0, time.UTC)
	id := seedTransaction(t, s, "u1", "Dining", "#ff922b", 50, model.TransactionExpense, at)

	if err := s.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	txns, err := s.FetchTransactions(ctx, "u1", at.AddDate(0, 0, -1), at.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("soft-deleted transaction still visible: %d", len(txns))
	}
}

func TestCreateTransaction_UnknownTypeRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	catID, err := s.CreateCategory(ctx, "u1", "Dining", "#ff922b")
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}

	at := time.Date(2026, 7, 10, 8, 0, 0, 0, time.UTC)
	if _, err := s.CreateTransaction(ctx, "u1", catID, decimal.NewFromInt(50), model.TransactionType("transfer"), "", at); err == nil {
		t.Error("expected error for unknown transaction type")
	}
}

func TestDeleteTransaction_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteTransaction(context.Background(), "u1", "no-such-id")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteTransaction_WrongOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 7, 10, 8, 0, 0, 0, time.UTC)
	id := seedTransaction(t, s, "u1", "Dining", "#ff922b", 50, model.TransactionExpense, at)

	if err := s.DeleteTransaction(ctx, "u2", id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for foreign owner, got %v", err)
	}

	// Still visible to its real owner.
	txns, err := s.FetchTransactions(ctx, "u1", at.AddDate(0, 0, -1), at.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("expected transaction to survive foreign delete, got %d", len(txns))
	}
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/finledger/api/internal/model"
)

// ErrUnavailable wraps any storage failure so callers can treat the data
// source being down as one condition regardless of driver.
var ErrUnavailable = errors.New("transaction data unavailable")

// TransactionReader supplies the aggregation engine with all non-deleted
// transactions for an owner whose timestamp falls in the closed interval
// [start, end], category reference resolved.
type TransactionReader interface {
	FetchTransactions(ctx context.Context, ownerID string, start, end time.Time) ([]model.Transaction, error)
}

package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/api/internal/model"
)

// stubReader returns canned transactions filtered by the requested range.
type stubReader struct {
	txns []model.Transaction
	err  error
}

func (r *stubReader) FetchTransactions(ctx context.Context, ownerID string, start, end time.Time) ([]model.Transaction, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []model.Transaction
	for _, t := range r.txns {
		if !t.CreatedAt.Before(start) && !t.CreatedAt.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func income(amount int64, at time.Time) model.Transaction {
	return model.Transaction{
		Amount:    decimal.NewFromInt(amount),
		Type:      model.TransactionIncome,
		CreatedAt: at,
	}
}

func expense(amount int64, category string, at time.Time) model.Transaction {
	return model.Transaction{
		Amount:       decimal.NewFromInt(amount),
		Type:         model.TransactionExpense,
		CategoryName: category,
		CreatedAt:    at,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestMonthlyBalance_SumsIncomeAndExpense(t *testing.T) {
	reader := &stubReader{txns: []model.Transaction{
		income(3000, day(2026, 7, 5)),
		expense(450, "Groceries", day(2026, 7, 12)),
		expense(900, "Rent", day(2026, 7, 1)),
		// Outside the month, must be ignored.
		income(9999, day(2026, 8, 1)),
	}}
	engine := NewEngine(reader)

	balance, err := engine.MonthlyBalance(context.Background(), "u1", day(2026, 7, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !balance.TotalIncome.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("total income = %s, want 3000", balance.TotalIncome)
	}
	if !balance.TotalExpense.Equal(decimal.NewFromInt(1350)) {
		t.Errorf("total expense = %s, want 1350", balance.TotalExpense)
	}
	if !balance.Balance.Equal(decimal.NewFromInt(1650)) {
		t.Errorf("balance = %s, want 1650", balance.Balance)
	}
}

func TestMonthlyBalance_EmptyMonthIsZero(t *testing.T) {
	engine := NewEngine(&stubReader{})

	balance, err := engine.MonthlyBalance(context.Background(), "u1", day(2026, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.Balance.IsZero() || !balance.TotalIncome.IsZero() || !balance.TotalExpense.IsZero() {
		t.Errorf("expected all-zero balance for empty month, got %+v", balance)
	}
}

func TestMonthlyBalances_GapFreeAndOrdered(t *testing.T) {
	reader := &stubReader{txns: []model.Transaction{
		income(100, day(2026, 3, 10)),
		income(200, day(2026, 6, 10)),
	}}
	engine := NewEngine(reader)

	balances, err := engine.MonthlyBalances(context.Background(), "u1", day(2026, 3, 20), day(2026, 6, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(balances) != 4 {
		t.Fatalf("expected 4 months, got %d", len(balances))
	}
	for i, b := range balances {
		want := time.Date(2026, time.Month(3+i), 1, 0, 0, 0, 0, time.UTC)
		if !b.Month.Equal(want) {
			t.Errorf("month[%d] = %s, want %s", i, b.Month, want)
		}
	}
	// April and May have no transactions but still appear.
	if !balances[1].Balance.IsZero() || !balances[2].Balance.IsZero() {
		t.Error("expected zero balances for empty interior months")
	}
}

func TestMonthlyBalances_StartAfterEndIsEmpty(t *testing.T) {
	engine := NewEngine(&stubReader{})

	balances, err := engine.MonthlyBalances(context.Background(), "u1", day(2026, 6, 1), day(2026, 3, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balances == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(balances) != 0 {
		t.Errorf("expected no months, got %d", len(balances))
	}
}

func TestCategoryExpenses_RankingAndPercentages(t *testing.T) {
	reader := &stubReader{txns: []model.Transaction{
		expense(600, "Rent", day(2026, 7, 1)),
		expense(300, "Groceries", day(2026, 7, 5)),
		expense(100, "Groceries", day(2026, 7, 9)),
		// Income must not appear in the ranking.
		income(5000, day(2026, 7, 3)),
	}}
	engine := NewEngine(reader)

	expenses, err := engine.CategoryExpenses(context.Background(), "u1", day(2026, 7, 1), day(2026, 7, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(expenses) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(expenses))
	}
	if expenses[0].CategoryName != "Rent" || expenses[1].CategoryName != "Groceries" {
		t.Errorf("unexpected ranking: %s, %s", expenses[0].CategoryName, expenses[1].CategoryName)
	}
	if !expenses[0].Percentage.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Rent percentage = %s, want 60", expenses[0].Percentage)
	}
	if !expenses[1].AverageAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Groceries average = %s, want 200", expenses[1].AverageAmount)
	}
	if expenses[1].TransactionCount != 2 {
		t.Errorf("Groceries count = %d, want 2", expenses[1].TransactionCount)
	}
}

func TestCategoryExpenses_TieBreakByName(t *testing.T) {
	reader := &stubReader{txns: []model.Transaction{
		expense(100, "Utilities", day(2026, 7, 2)),
		expense(100, "Dining", day(2026, 7, 3)),
	}}
	engine := NewEngine(reader)

	expenses, err := engine.CategoryExpenses(context.Background(), "u1", day(2026, 7, 1), day(2026, 7, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expenses[0].CategoryName != "Dining" {
		t.Errorf("expected alphabetical tie-break, got %s first", expenses[0].CategoryName)
	}
}

func TestTrendAnalysis_WindowAndGrowth(t *testing.T) {
	reader := &stubReader{txns: []model.Transaction{
		income(100, day(2026, 6, 10)),
		income(200, day(2026, 7, 10)),
		income(150, day(2026, 8, 10)),
	}}
	now := func() time.Time { return day(2026, 8, 15) }
	engine := NewEngineWithClock(reader, now)

	analysis, err := engine.TrendAnalysis(context.Background(), "u1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if analysis.MonthsAnalyzed != 3 {
		t.Errorf("months analyzed = %d, want 3", analysis.MonthsAnalyzed)
	}
	if len(analysis.MonthlyTrends) != 3 {
		t.Fatalf("expected 3 trend rows, got %d", len(analysis.MonthlyTrends))
	}

	first := analysis.MonthlyTrends[0]
	if !first.IncomeGrowth.IsZero() {
		t.Errorf("first row growth = %s, want 0", first.IncomeGrowth)
	}

	second := analysis.MonthlyTrends[1]
	if !second.IncomeGrowth.Equal(decimal.NewFromInt(100)) {
		t.Errorf("second row income growth = %s, want 100", second.IncomeGrowth)
	}

	third := analysis.MonthlyTrends[2]
	if !third.IncomeGrowth.Equal(decimal.NewFromInt(-25)) {
		t.Errorf("third row income growth = %s, want -25", third.IncomeGrowth)
	}

	summary := analysis.IncomeTrend
	if !summary.CurrentAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("current = %s, want 150", summary.CurrentAmount)
	}
	if !summary.PreviousAmount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("previous = %s, want 200", summary.PreviousAmount)
	}
	if summary.IsIncreasing {
		t.Error("expected decreasing income trend")
	}
	if !summary.AverageMonthly.Equal(decimal.NewFromInt(150)) {
		t.Errorf("average = %s, want 150", summary.AverageMonthly)
	}
	if !summary.HighestMonthly.Equal(decimal.NewFromInt(200)) {
		t.Errorf("highest = %s, want 200", summary.HighestMonthly)
	}
	if !summary.LowestMonthly.Equal(decimal.NewFromInt(100)) {
		t.Errorf("lowest = %s, want 100", summary.LowestMonthly)
	}
}

func TestTrendAnalysis_NegativePreviousUsesAbsolute(t *testing.T) {
	// June: -100 balance, July: -50 balance. Growth should be +50, not -50.
	reader := &stubReader{txns: []model.Transaction{
		expense(100, "Rent", day(2026, 6, 10)),
		expense(50, "Rent", day(2026, 7, 10)),
	}}
	now := func() time.Time { return day(2026, 7, 20) }
	engine := NewEngineWithClock(reader, now)

	analysis, err := engine.TrendAnalysis(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := analysis.MonthlyTrends[1]
	if !second.BalanceGrowth.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance growth = %s, want 50", second.BalanceGrowth)
	}
}

func TestTrendAnalysis_InvalidMonthCount(t *testing.T) {
	engine := NewEngine(&stubReader{})

	for _, months := range []int{0, -1} {
		if _, err := engine.TrendAnalysis(context.Background(), "u1", months); !errors.Is(err, ErrInvalidMonthCount) {
			t.Errorf("months=%d: expected ErrInvalidMonthCount, got %v", months, err)
		}
	}
}

func TestEngine_PropagatesReaderError(t *testing.T) {
	readerErr := errors.New("db gone")
	engine := NewEngine(&stubReader{err: readerErr})

	if _, err := engine.MonthlyBalance(context.Background(), "u1", day(2026, 7, 1)); !errors.Is(err, readerErr) {
		t.Errorf("expected reader error, got %v", err)
	}
	if _, err := engine.CategoryExpenses(context.Background(), "u1", day(2026, 7, 1), day(2026, 7, 31)); !errors.Is(err, readerErr) {
		t.Errorf("expected reader error, got %v", err)
	}
}

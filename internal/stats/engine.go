package stats

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/api/internal/model"
	"github.com/finledger/api/internal/repository"
)

// ErrInvalidMonthCount is returned when a trend analysis is requested for a
// non-positive number of months.
var ErrInvalidMonthCount = errors.New("month count must be positive")

var hundred = decimal.NewFromInt(100)

// Engine computes aggregated statistics over an owner's transactions. It is
// pure: it holds no state beyond its collaborators and fails only when the
// transaction reader fails, in which case the error is propagated unchanged.
type Engine struct {
	txns repository.TransactionReader
	now  func() time.Time
}

// NewEngine creates an engine reading the wall clock.
func NewEngine(txns repository.TransactionReader) *Engine {
	return NewEngineWithClock(txns, time.Now)
}

// NewEngineWithClock creates an engine with an injected clock, used by trend
// analysis to anchor the trailing window.
func NewEngineWithClock(txns repository.TransactionReader, now func() time.Time) *Engine {
	return &Engine{txns: txns, now: now}
}

// MonthlyBalance sums income and expenses for the calendar month containing
// the given time. Empty months yield an all-zero balance, never an error.
func (e *Engine) MonthlyBalance(ctx context.Context, ownerID string, month time.Time) (model.MonthlyBalance, error) {
	balance, _, err := e.monthStats(ctx, ownerID, month)
	return balance, err
}

// MonthlyBalances returns one balance per calendar month from startMonth to
// endMonth inclusive, in chronological order with no gaps. A start month
// after the end month yields an empty sequence.
func (e *Engine) MonthlyBalances(ctx context.Context, ownerID string, startMonth, endMonth time.Time) ([]model.MonthlyBalance, error) {
	balances := []model.MonthlyBalance{}
	end := monthStart(endMonth)
	for current := monthStart(startMonth); !current.After(end); current = current.AddDate(0, 1, 0) {
		balance, _, err := e.monthStats(ctx, ownerID, current)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// CategoryExpenses groups expense transactions in [start, end] by category
// and ranks them by total amount descending, ties broken by category name so
// the ordering is deterministic. Percentages are zero when there are no
// expenses at all.
func (e *Engine) CategoryExpenses(ctx context.Context, ownerID string, start, end time.Time) ([]model.CategoryExpense, error) {
	txns, err := e.txns.FetchTransactions(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}

	type group struct {
		color string
		total decimal.Decimal
		count int
	}
	groups := map[string]*group{}
	total := decimal.Zero
	for _, txn := range txns {
		if txn.Type != model.TransactionExpense {
			continue
		}
		g, ok := groups[txn.CategoryName]
		if !ok {
			g = &group{color: txn.CategoryColor}
			groups[txn.CategoryName] = g
		}
		g.total = g.total.Add(txn.Amount)
		g.count++
		total = total.Add(txn.Amount)
	}

	expenses := make([]model.CategoryExpense, 0, len(groups))
	for name, g := range groups {
		percentage := decimal.Zero
		if total.IsPositive() {
			percentage = g.total.Div(total).Mul(hundred)
		}
		expenses = append(expenses, model.CategoryExpense{
			CategoryName:     name,
			CategoryColor:    g.color,
			TotalAmount:      g.total,
			TransactionCount: g.count,
			Percentage:       percentage,
			AverageAmount:    g.total.Div(decimal.NewFromInt(int64(g.count))),
		})
	}

	sort.Slice(expenses, func(i, j int) bool {
		if c := expenses[i].TotalAmount.Cmp(expenses[j].TotalAmount); c != 0 {
			return c > 0
		}
		return expenses[i].CategoryName < expenses[j].CategoryName
	})
	return expenses, nil
}

// TrendAnalysis covers exactly months trailing calendar months ending at the
// current month. Growth for each row uses the previous row; the first row's
// growth fields stay zero.
func (e *Engine) TrendAnalysis(ctx context.Context, ownerID string, months int) (*model.TrendAnalysis, error) {
	if months < 1 {
		return nil, ErrInvalidMonthCount
	}

	endMonth := monthStart(e.now())
	startMonth := endMonth.AddDate(0, -(months - 1), 0)

	balances := make([]model.MonthlyBalance, 0, months)
	counts := make([]int, 0, months)
	for current := startMonth; !current.After(endMonth); current = current.AddDate(0, 1, 0) {
		balance, count, err := e.monthStats(ctx, ownerID, current)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
		counts = append(counts, count)
	}

	trends := make([]model.MonthlyTrend, len(balances))
	for i, b := range balances {
		trend := model.MonthlyTrend{
			Month:            b.Month,
			MonthName:        b.Month.Format("January 2006"),
			Income:           b.TotalIncome,
			Expenses:         b.TotalExpense,
			Balance:          b.Balance,
			TransactionCount: counts[i],
		}
		if i > 0 {
			prev := balances[i-1]
			trend.IncomeGrowth = growthPercentage(b.TotalIncome, prev.TotalIncome)
			trend.ExpenseGrowth = growthPercentage(b.TotalExpense, prev.TotalExpense)
			trend.BalanceGrowth = growthPercentage(b.Balance, prev.Balance)
		}
		trends[i] = trend
	}

	incomes := make([]decimal.Decimal, len(balances))
	expenses := make([]decimal.Decimal, len(balances))
	netBalances := make([]decimal.Decimal, len(balances))
	for i, b := range balances {
		incomes[i] = b.TotalIncome
		expenses[i] = b.TotalExpense
		netBalances[i] = b.Balance
	}

	return &model.TrendAnalysis{
		MonthsAnalyzed: months,
		StartDate:      startMonth,
		EndDate:        e.now(),
		MonthlyTrends:  trends,
		IncomeTrend:    summarize(incomes),
		ExpenseTrend:   summarize(expenses),
		BalanceTrend:   summarize(netBalances),
	}, nil
}

func (e *Engine) monthStats(ctx context.Context, ownerID string, month time.Time) (model.MonthlyBalance, int, error) {
	start := monthStart(month)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	txns, err := e.txns.FetchTransactions(ctx, ownerID, start, end)
	if err != nil {
		return model.MonthlyBalance{}, 0, err
	}

	income := decimal.Zero
	expense := decimal.Zero
	for _, txn := range txns {
		switch txn.Type {
		case model.TransactionIncome:
			income = income.Add(txn.Amount)
		case model.TransactionExpense:
			expense = expense.Add(txn.Amount)
		}
	}

	return model.MonthlyBalance{
		Month:        start,
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}, len(txns), nil
}

// growthPercentage is (current - previous) / |previous| * 100, or zero when
// there is nothing to compare against.
func growthPercentage(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous.Abs()).Mul(hundred)
}

// summarize compares the last value of a monthly series against the one
// before it and computes window-wide aggregates. The series is never empty.
func summarize(series []decimal.Decimal) model.TrendSummary {
	current := series[len(series)-1]
	previous := decimal.Zero
	if len(series) > 1 {
		previous = series[len(series)-2]
	}

	sum := decimal.Zero
	highest := series[0]
	lowest := series[0]
	for _, v := range series {
		sum = sum.Add(v)
		if v.GreaterThan(highest) {
			highest = v
		}
		if v.LessThan(lowest) {
			lowest = v
		}
	}

	return model.TrendSummary{
		CurrentAmount:    current,
		PreviousAmount:   previous,
		GrowthAmount:     current.Sub(previous),
		GrowthPercentage: growthPercentage(current, previous),
		IsIncreasing:     current.GreaterThan(previous),
		AverageMonthly:   sum.Div(decimal.NewFromInt(int64(len(series)))),
		HighestMonthly:   highest,
		LowestMonthly:    lowest,
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

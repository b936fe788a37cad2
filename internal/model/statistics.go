package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger entry as supplied by the transaction
// reader, with its category already resolved.
type Transaction struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"type"`
	CategoryName  string          `json:"categoryName"`
	CategoryColor string          `json:"categoryColor"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// MonthlyBalance is the income/expense summary of one calendar month.
// Balance is always TotalIncome - TotalExpense.
type MonthlyBalance struct {
	Month        time.Time       `json:"month"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Balance      decimal.Decimal `json:"balance"`
}

// CategoryExpense ranks one category's share of expenses in a period.
type CategoryExpense struct {
	CategoryName     string          `json:"categoryName"`
	CategoryColor    string          `json:"categoryColor"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TransactionCount int             `json:"transactionCount"`
	Percentage       decimal.Decimal `json:"percentage"`
	AverageAmount    decimal.Decimal `json:"averageAmount"`
}

// MonthlyTrend is one row of a trend analysis: a month's totals plus growth
// against the previous month. Growth fields are zero for the first month in
// the analyzed window.
type MonthlyTrend struct {
	Month            time.Time       `json:"month"`
	MonthName        string          `json:"monthName"`
	Income           decimal.Decimal `json:"income"`
	Expenses         decimal.Decimal `json:"expenses"`
	Balance          decimal.Decimal `json:"balance"`
	IncomeGrowth     decimal.Decimal `json:"incomeGrowth"`
	ExpenseGrowth    decimal.Decimal `json:"expenseGrowth"`
	BalanceGrowth    decimal.Decimal `json:"balanceGrowth"`
	TransactionCount int             `json:"transactionCount"`
}

// TrendSummary compares the latest month of a series against the one before
// it and summarizes the whole window.
type TrendSummary struct {
	CurrentAmount    decimal.Decimal `json:"currentAmount"`
	PreviousAmount   decimal.Decimal `json:"previousAmount"`
	GrowthAmount     decimal.Decimal `json:"growthAmount"`
	GrowthPercentage decimal.Decimal `json:"growthPercentage"`
	IsIncreasing     bool            `json:"isIncreasing"`
	AverageMonthly   decimal.Decimal `json:"averageMonthly"`
	HighestMonthly   decimal.Decimal `json:"highestMonthly"`
	LowestMonthly    decimal.Decimal `json:"lowestMonthly"`
}

// TrendAnalysis is the full result of a trend computation over a trailing
// month window.
type TrendAnalysis struct {
	MonthsAnalyzed int            `json:"monthsAnalyzed"`
	StartDate      time.Time      `json:"startDate"`
	EndDate        time.Time      `json:"endDate"`
	MonthlyTrends  []MonthlyTrend `json:"monthlyTrends"`
	IncomeTrend    TrendSummary   `json:"incomeTrend"`
	ExpenseTrend   TrendSummary   `json:"expenseTrend"`
	BalanceTrend   TrendSummary   `json:"balanceTrend"`
}

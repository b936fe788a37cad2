package render

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/finledger/api/internal/model"
)

// Data holds the aggregated sections handed to a renderer. Only the sections
// the request asked for are populated.
type Data struct {
	Transactions     []model.Transaction
	MonthlyBalances  []model.MonthlyBalance
	CategoryExpenses []model.CategoryExpense
	Trends           *model.TrendAnalysis
}

// Renderer turns aggregated data into a downloadable artifact.
type Renderer interface {
	Render(ctx context.Context, ownerID string, req *model.ReportRequest, data *Data) ([]byte, error)
	ContentType() string
	FileName(jobID string) string
}

// WorkbookRenderer produces a zip archive with one CSV sheet per requested
// section plus a summary sheet.
type WorkbookRenderer struct {
	now func() time.Time
}

func NewWorkbookRenderer() *WorkbookRenderer {
	return &WorkbookRenderer{now: time.Now}
}

func (r *WorkbookRenderer) ContentType() string {
	return "application/zip"
}

func (r *WorkbookRenderer) FileName(jobID string) string {
	return fmt.Sprintf("financial_report_%s.zip", jobID)
}

func (r *WorkbookRenderer) Render(ctx context.Context, ownerID string, req *model.ReportRequest, data *Data) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	if req.Includes(model.SectionTransactions) {
		if err := writeSheet(archive, "transactions.csv", transactionRows(data.Transactions)); err != nil {
			return nil, err
		}
	}
	if req.Includes(model.SectionMonthlyBalance) {
		if err := writeSheet(archive, "monthly_balance.csv", balanceRows(data.MonthlyBalances)); err != nil {
			return nil, err
		}
	}
	if req.Includes(model.SectionCategoryExpenses) {
		if err := writeSheet(archive, "category_expenses.csv", categoryRows(data.CategoryExpenses)); err != nil {
			return nil, err
		}
	}
	if req.Includes(model.SectionTrendAnalysis) && data.Trends != nil {
		if err := writeSheet(archive, "trend_analysis.csv", trendRows(data.Trends)); err != nil {
			return nil, err
		}
	}
	if err := writeSheet(archive, "summary.csv", r.summaryRows(req, data)); err != nil {
		return nil, err
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("finalize report archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(archive *zip.Writer, name string, rows [][]string) error {
	f, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write sheet %s: %w", name, err)
	}
	return nil
}

func transactionRows(txns []model.Transaction) [][]string {
	rows := [][]string{{"Date", "Type", "Category", "Amount", "Note"}}
	for _, t := range txns {
		rows = append(rows, []string{
			t.CreatedAt.Format("2006-01-02"),
			string(t.Type),
			t.CategoryName,
			t.Amount.String(),
			t.Note,
		})
	}
	return rows
}

func balanceRows(balances []model.MonthlyBalance) [][]string {
	rows := [][]string{{"Month", "Total Income", "Total Expense", "Balance"}}
	for _, b := range balances {
		rows = append(rows, []string{
			b.Month.Format("2006-01"),
			b.TotalIncome.String(),
			b.TotalExpense.String(),
			b.Balance.String(),
		})
	}
	return rows
}

func categoryRows(expenses []model.CategoryExpense) [][]string {
	rows := [][]string{{"Category", "Total Amount", "Transaction Count", "Percentage", "Average Amount"}}
	for _, c := range expenses {
		rows = append(rows, []string{
			c.CategoryName,
			c.TotalAmount.String(),
			strconv.Itoa(c.TransactionCount),
			c.Percentage.StringFixed(2),
			c.AverageAmount.StringFixed(2),
		})
	}
	return rows
}

func trendRows(trends *model.TrendAnalysis) [][]string {
	rows := [][]string{{"Month", "Income", "Expenses", "Balance", "Income Growth %", "Expense Growth %", "Balance Growth %", "Transactions"}}
	for _, t := range trends.MonthlyTrends {
		rows = append(rows, []string{
			t.MonthName,
			t.Income.String(),
			t.Expenses.String(),
			t.Balance.String(),
			t.IncomeGrowth.StringFixed(2),
			t.ExpenseGrowth.StringFixed(2),
			t.BalanceGrowth.StringFixed(2),
			strconv.Itoa(t.TransactionCount),
		})
	}
	return rows
}

func (r *WorkbookRenderer) summaryRows(req *model.ReportRequest, data *Data) [][]string {
	sections := make([]string, len(req.Sections))
	for i, s := range req.Sections {
		sections[i] = string(s)
	}
	rows := [][]string{
		{"Period", fmt.Sprintf("%s to %s", req.StartDate, req.EndDate)},
		{"Generated", r.now().UTC().Format(time.RFC3339)},
		{"Sections", fmt.Sprintf("%v", sections)},
		{"Transactions", strconv.Itoa(len(data.Transactions))},
		{"Months Covered", strconv.Itoa(len(data.MonthlyBalances))},
		{"Expense Categories", strconv.Itoa(len(data.CategoryExpenses))},
	}
	return rows
}

package model

// Transaction types
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

var ValidTransactionTypes = []TransactionType{
	TransactionIncome, TransactionExpense,
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	for _, v := range ValidTransactionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Report sections
type ReportSection string

const (
	SectionTransactions     ReportSection = "transactions"
	SectionMonthlyBalance   ReportSection = "monthly_balance"
	SectionCategoryExpenses ReportSection = "category_expenses"
	SectionTrendAnalysis    ReportSection = "trend_analysis"
	SectionComplete         ReportSection = "complete"
)

var ValidReportSections = []ReportSection{
	SectionTransactions, SectionMonthlyBalance, SectionCategoryExpenses,
	SectionTrendAnalysis, SectionComplete,
}

// Valid reports whether s is a known report section.
func (s ReportSection) Valid() bool {
	for _, v := range ValidReportSections {
		if s == v {
			return true
		}
	}
	return false
}

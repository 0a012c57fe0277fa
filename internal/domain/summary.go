package domain

// ============================================================
// Financial summary (derived, never persisted on its own)
// ============================================================

// Spending trend labels.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
	TrendUnknown    = "unknown"
)

// Window is a trailing "last N days" period. A nil *Window means all time.
type Window struct {
	Days int
}

// TransactionEntry is one row of the largest transactions/deposits lists.
type TransactionEntry struct {
	TransactionID   string  `json:"transaction_id"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
	TransactionDate string  `json:"transaction_date"`
}

// CustomerFinancialSummary is the aggregator output for one
// (customer, window) query.
type CustomerFinancialSummary struct {
	Name                  string             `json:"name"`
	NetWorth              float64            `json:"net_worth"`
	TotalDebt             float64            `json:"total_debt"`
	MoneySpent            float64            `json:"money_spent"`
	MoneyAdded            float64            `json:"money_added"`
	TopTransactions       []TransactionEntry `json:"top_transactions"`
	TopDeposits           []TransactionEntry `json:"top_deposits"`
	AccountBalances       map[string]float64 `json:"account_balances"`
	TopSpendingCategories []string           `json:"top_spending_categories"`
	SpendingTrend         string             `json:"spending_trend"`
}

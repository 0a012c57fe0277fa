package domain

import "time"

// ============================================================
// Enrichments
// ============================================================

// Quote directions.
const (
	QuoteUp      = "Up"
	QuoteDown    = "Down"
	QuoteUnknown = "Unknown"
)

// StockQuote is the latest price of a ticker and its direction since the
// previous session.
type StockQuote struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Status string  `json:"status"`
	Live   bool    `json:"live"`
}

// NewsArticle is one headline from the news aggregator.
type NewsArticle struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
}

// NewsDigest pairs the fetched headlines with a short generated summary.
type NewsDigest struct {
	Summary  string        `json:"summary"`
	Articles []NewsArticle `json:"articles"`
}

// ============================================================
// Report (what the newsletter is rendered from)
// ============================================================

// Report is the flat merge of the financial summary and the enrichments.
type Report struct {
	CustomerID            string             `json:"customer_id"`
	Name                  string             `json:"name"`
	NetWorth              float64            `json:"net_worth"`
	MoneyOwed             float64            `json:"money_owed"`
	MoneySpent            float64            `json:"money_spent"`
	MoneyAdded            float64            `json:"money_added"`
	AccountBalances       map[string]float64 `json:"account_balances"`
	LargestTransactions   []TransactionEntry `json:"largest_transactions"`
	LargestDeposits       []TransactionEntry `json:"largest_deposits"`
	TopSpendingCategories []string           `json:"top_spending_categories"`
	SpendingTrend         string             `json:"spending_trend"`
	AccountsSummary       string             `json:"accounts_summary"`
	Stocks                []StockQuote       `json:"stocks"`
	NewsAISummary         string             `json:"news_ai_summary"`
	NewsArticles          []NewsArticle      `json:"news_articles"`
	DateRange             string             `json:"date_range,omitempty"`
	GeneratedAt           time.Time          `json:"generated_at"`
	Warnings              []string           `json:"warnings,omitempty"`
}

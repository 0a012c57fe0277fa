package service

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
)

const (
	topN          = 3
	entryDateForm = "2006-01-02"

	// UnknownCustomerName stands in when the customer record is missing.
	UnknownCustomerName = "Unknown Customer"
)

var windowPattern = regexp.MustCompile(`^(\d+)d$`)

// ParseWindow parses "<N>d" into a trailing window. An empty string means
// all time and returns nil.
func ParseWindow(s string) (*domain.Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	m := windowPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, &domain.ErrValidation{Field: "date_range", Message: fmt.Sprintf("expected <days>d, got %q", s)}
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days <= 0 {
		return nil, &domain.ErrValidation{Field: "date_range", Message: fmt.Sprintf("days must be a positive integer, got %q", s)}
	}
	return &domain.Window{Days: days}, nil
}

// Summarize computes the financial summary of one customer snapshot.
// It never fails: every field degrades to its zero value when its inputs
// are missing. now anchors the window.
func Summarize(snap *domain.CustomerSnapshot, window *domain.Window, now time.Time) domain.CustomerFinancialSummary {
	summary := domain.CustomerFinancialSummary{
		TopTransactions:       []domain.TransactionEntry{},
		TopDeposits:           []domain.TransactionEntry{},
		AccountBalances:       map[string]float64{},
		TopSpendingCategories: []string{},
		SpendingTrend:         domain.TrendUnknown,
	}
	if snap == nil {
		return summary
	}
	summary.Name = UnknownCustomerName
	if snap.Customer != nil {
		if name := strings.TrimSpace(snap.Customer.FullName()); name != "" {
			summary.Name = name
		}
	}

	filtered := filterWindow(snap.Transactions, window, now)
	accounts := ownedAccounts(snap.CustomerID, snap.Accounts)

	summary.NetWorth = netWorth(accounts, snap.Loans)
	summary.TotalDebt = totalDebt(accounts, snap.Loans)
	summary.MoneySpent, summary.MoneyAdded = totals(filtered)
	summary.TopTransactions, summary.TopDeposits = topLists(filtered)
	summary.AccountBalances = accountBalances(accounts)

	// ranking and trend look at the whole purchase history
	summary.TopSpendingCategories = topCategories(snap.Transactions)
	summary.SpendingTrend = spendingTrend(snap.Transactions)

	return summary
}

func filterWindow(txs []domain.Transaction, window *domain.Window, now time.Time) []domain.Transaction {
	if window == nil {
		return txs
	}
	cutoff := now.AddDate(0, 0, -window.Days)
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		d, ok := tx.ParsedDate()
		if !ok || d.Before(cutoff) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func money(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ownedAccounts keeps the accounts of customerID. An empty customerID
// keeps everything.
func ownedAccounts(customerID string, accounts []domain.Account) []domain.Account {
	if customerID == "" {
		return accounts
	}
	out := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	return out
}

func accountIDs(accounts []domain.Account) map[string]bool {
	ids := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		ids[a.ID] = true
	}
	return ids
}

// openDebt sums loans that are not completed and belong to one of the
// accounts. Loans without an account ID are skipped.
func openDebt(accounts []domain.Account, loans []domain.Loan) decimal.Decimal {
	ids := accountIDs(accounts)
	debt := decimal.Zero
	for _, l := range loans {
		if l.Status == domain.LoanCompleted {
			continue
		}
		if l.AccountID == "" || !ids[l.AccountID] {
			continue
		}
		debt = debt.Add(money(l.Amount))
	}
	return debt
}

func netWorth(accounts []domain.Account, loans []domain.Loan) float64 {
	assets := decimal.Zero
	for _, a := range accounts {
		assets = assets.Add(money(a.Balance))
	}
	return toFloat(assets.Sub(openDebt(accounts, loans)))
}

func totalDebt(accounts []domain.Account, loans []domain.Loan) float64 {
	return toFloat(openDebt(accounts, loans))
}

func isSpend(t string) bool {
	return t == domain.TxPurchase || t == domain.TxWithdrawal
}

func totals(txs []domain.Transaction) (spent, added float64) {
	s, a := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch {
		case isSpend(tx.Type):
			s = s.Add(money(tx.Amount))
		case tx.Type == domain.TxDeposit:
			a = a.Add(money(tx.Amount))
		}
	}
	return toFloat(s.Abs()), toFloat(a)
}

func entry(tx domain.Transaction) domain.TransactionEntry {
	date := tx.Date
	if d, ok := tx.ParsedDate(); ok {
		date = d.Format(entryDateForm)
	}
	return domain.TransactionEntry{
		TransactionID:   tx.ID,
		Amount:          tx.Amount,
		Description:     tx.Description,
		TransactionDate: date,
	}
}

func topLists(txs []domain.Transaction) (spend, deposits []domain.TransactionEntry) {
	byMagnitude := append([]domain.Transaction(nil), txs...)
	sort.SliceStable(byMagnitude, func(i, j int) bool {
		return math.Abs(byMagnitude[i].Amount) > math.Abs(byMagnitude[j].Amount)
	})
	spend = []domain.TransactionEntry{}
	for _, tx := range byMagnitude {
		if len(spend) == topN {
			break
		}
		if isSpend(tx.Type) {
			spend = append(spend, entry(tx))
		}
	}

	var deps []domain.Transaction
	for _, tx := range txs {
		if tx.Type == domain.TxDeposit {
			deps = append(deps, tx)
		}
	}
	sort.SliceStable(deps, func(i, j int) bool { return deps[i].Amount > deps[j].Amount })
	deposits = []domain.TransactionEntry{}
	for i := 0; i < len(deps) && i < topN; i++ {
		deposits = append(deposits, entry(deps[i]))
	}
	return spend, deposits
}

func accountBalances(accounts []domain.Account) map[string]float64 {
	out := make(map[string]float64, len(accounts))
	for _, a := range accounts {
		label := a.Nickname
		if strings.TrimSpace(label) == "" {
			label = "Account " + a.ID
		}
		out[label] = toFloat(money(a.Balance))
	}
	return out
}

func topCategories(txs []domain.Transaction) []string {
	counts := map[string]int{}
	var order []string
	for _, tx := range txs {
		if tx.Type != domain.TxPurchase {
			continue
		}
		if _, seen := counts[tx.Description]; !seen {
			order = append(order, tx.Description)
		}
		counts[tx.Description]++
	}
	// stable sort keeps first-seen order among equal counts
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > topN {
		order = order[:topN]
	}
	if order == nil {
		return []string{}
	}
	return order
}

func spendingTrend(txs []domain.Transaction) string {
	type dated struct {
		tx   domain.Transaction
		at   time.Time
		okAt bool
	}
	var purchases []dated
	for _, tx := range txs {
		if tx.Type != domain.TxPurchase {
			continue
		}
		at, ok := tx.ParsedDate()
		purchases = append(purchases, dated{tx: tx, at: at, okAt: ok})
	}
	if len(purchases) < 2 {
		return domain.TrendUnknown
	}

	// unparsable dates sort after every dated purchase
	sort.SliceStable(purchases, func(i, j int) bool {
		a, b := purchases[i], purchases[j]
		if a.okAt != b.okAt {
			return a.okAt
		}
		return a.okAt && a.at.Before(b.at)
	})

	mid := len(purchases) / 2
	first, second := decimal.Zero, decimal.Zero
	for i, p := range purchases {
		if i < mid {
			first = first.Add(money(p.tx.Amount))
		} else {
			second = second.Add(money(p.tx.Amount))
		}
	}

	switch second.Cmp(first) {
	case 1:
		return domain.TrendIncreasing
	case -1:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

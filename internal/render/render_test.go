package render_test

import (
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/render"
)

func TestCurrency(t *testing.T) {
	tests := map[float64]string{
		0:           "$0.00",
		5:           "$5.00",
		1234.5:      "$1,234.50",
		1234567.891: "$1,234,567.89",
		-12:         "-$12.00",
		999.999:     "$1,000.00",
		-0.001:      "$0.00",
	}
	for in, want := range tests {
		if got := render.Currency(in); got != want {
			t.Errorf("Currency(%v) = %q, want %q", in, got, want)
		}
	}
}

func sampleReport() *domain.Report {
	return &domain.Report{
		Name:            "Ada Lovelace",
		NetWorth:        12345.67,
		MoneyOwed:       500,
		MoneySpent:      321.5,
		MoneyAdded:      1000,
		AccountBalances: map[string]float64{"Savings": 2000, "Checking": 1500.25},
		LargestTransactions: []domain.TransactionEntry{
			{TransactionID: "p1", Amount: 80, Description: "Electronics", TransactionDate: "2024-03-20"},
		},
		LargestDeposits: []domain.TransactionEntry{},
		AccountsSummary: "You're on <b>track</b>",
		Stocks: []domain.StockQuote{
			{Ticker: "^GSPC", Name: "S&P 500", Price: 5769, Status: domain.QuoteUp},
			{Ticker: "^DJI", Price: 42794, Status: domain.QuoteDown},
			{Ticker: "^IXIC", Price: 18193, Status: domain.QuoteDown},
		},
		NewsAISummary: "Markets were mixed.",
		NewsArticles: []domain.NewsArticle{
			{Title: "One", Source: "Reuters", URL: "https://example.com/1", PublishedAt: "2024-03-01T10:00:00Z"},
			{Title: "Two", Source: "FT", URL: "https://example.com/2", PublishedAt: "2024-03-02T10:00:00Z"},
			{Title: "Three", Source: "WSJ", URL: "https://example.com/3", PublishedAt: "bad"},
			{Title: "Four", Source: "AP", URL: "https://example.com/4", PublishedAt: "2024-03-04T10:00:00Z"},
			{Title: "Five", Source: "BBC", URL: "https://example.com/5", PublishedAt: "2024-03-05T10:00:00Z"},
		},
	}
}

func TestRender(t *testing.T) {
	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	out, err := render.Render(sampleReport(), render.Options{Date: date, UnsubscribeURL: "https://penny.example/unsubscribe?token=abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Errorf("expected document to start with doctype, got %q", out[:40])
	}

	mustContain := []string{
		"<title>Penny - Ada Lovelace</title>",
		"March 31, 2024",
		"$12,345.67",
		"$321.50",
		"$1,000.00",
		"$500.00",
		"S&amp;P 500",
		"Dow Jones",
		"Nasdaq Composite",
		"#28a745",
		"#dc3545",
		"Checking",
		"$1,500.25",
		"Electronics",
		"Nothing to show for this period.",
		"Markets were mixed.",
		"March 01, 2024",
		"https://penny.example/unsubscribe?token=abc",
		"&copy; 2024 Penny Newsletter",
	}
	for _, s := range mustContain {
		if !strings.Contains(out, s) {
			t.Errorf("expected output to contain %q", s)
		}
	}

	if strings.Contains(out, "<b>track</b>") {
		t.Error("summary text must be escaped")
	}
	if strings.Contains(out, "Five") {
		t.Error("expected at most 4 articles")
	}
	if strings.Index(out, "Checking") > strings.Index(out, "Savings") {
		t.Error("expected balances in label order")
	}
}

func TestRender_NilReport(t *testing.T) {
	if _, err := render.Render(nil, render.Options{}); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestSubject(t *testing.T) {
	got := render.Subject(&domain.Report{Name: "Ada Lovelace"}, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	want := "Financial Insights Newsletter for Ada Lovelace - Mar 05, 2024"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/service"
)

type reportDeps struct {
	bank   *mockBank
	llm    *mockCompleter
	quotes *mockQuotes
	news   *mockNews
}

func newReportDeps() *reportDeps {
	bank := newMockBank()
	bank.customer = &domain.Customer{ID: "c1", FirstName: "Ada", LastName: "Lovelace"}
	bank.accounts = []domain.Account{
		{ID: "a1", CustomerID: "c1", Nickname: "Primary", Type: "Checking", Balance: 2500},
		{ID: "a2", CustomerID: "c1", Nickname: "Vacation", Type: "Savings", Balance: 500},
	}
	bank.txs["purchases/a1"] = []domain.Transaction{
		purchase("p1", 120, "Dining", daysAgo(3)),
		purchase("p2", 80, "Clothing", daysAgo(45)),
	}
	bank.txs["deposits/a2"] = []domain.Transaction{
		{ID: "d1", Type: domain.TxDeposit, Amount: 1000, Description: "Salary deposit", Date: daysAgo(2)},
	}
	bank.loans["a1"] = []domain.Loan{{ID: "l1", AccountID: "a1", Amount: 400, Status: "pending"}}

	quotes := &mockQuotes{quotes: map[string]*domain.StockQuote{
		"^GSPC": {Ticker: "^GSPC", Price: 5800, Status: domain.QuoteUp, Live: true},
	}}

	return &reportDeps{
		bank:   bank,
		llm:    &mockCompleter{text: "You are doing great, Ada."},
		quotes: quotes,
		news:   &mockNews{articles: sampleArticles()},
	}
}

func (d *reportDeps) service(metrics *observability.Metrics) *service.ReportService {
	logger := zap.NewNop()
	return service.NewReportService(
		service.NewSnapshotLoader(d.bank, metrics, logger, 2),
		service.NewNarrator(d.llm, time.Second, metrics, logger),
		service.NewMarketEnricher(d.quotes, []string{"^GSPC"}, time.Minute, metrics, logger),
		service.NewNewsEnricher(d.news, d.llm, "finance", time.Second, time.Minute, metrics, logger),
		metrics,
		logger,
	).WithClock(func() time.Time { return fixedNow })
}

func TestReportService_Build(t *testing.T) {
	svc := newReportDeps().service(observability.NewMetrics())

	r, err := svc.Build(context.Background(), "c1", &domain.Window{Days: 30})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if r.Name != "Ada Lovelace" || r.CustomerID != "c1" {
		t.Errorf("unexpected identity %q / %q", r.Name, r.CustomerID)
	}
	if r.NetWorth != 2600 || r.MoneyOwed != 400 {
		t.Errorf("expected net worth 2600 and debt 400, got %v / %v", r.NetWorth, r.MoneyOwed)
	}
	if r.MoneySpent != 120 || r.MoneyAdded != 1000 {
		t.Errorf("expected windowed totals 120 / 1000, got %v / %v", r.MoneySpent, r.MoneyAdded)
	}
	if r.DateRange != "30d" {
		t.Errorf("expected date range 30d, got %q", r.DateRange)
	}
	if r.AccountsSummary != "You are doing great, Ada." {
		t.Errorf("unexpected narrative %q", r.AccountsSummary)
	}
	if len(r.Stocks) != 1 || !r.Stocks[0].Live {
		t.Errorf("expected one live quote, got %+v", r.Stocks)
	}
	if len(r.NewsArticles) != 2 {
		t.Errorf("expected 2 articles, got %d", len(r.NewsArticles))
	}
	if !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("expected generated_at %v, got %v", fixedNow, r.GeneratedAt)
	}
}

func TestReportService_DegradesEnrichment(t *testing.T) {
	deps := newReportDeps()
	deps.llm.err = errors.New("llm down")
	deps.quotes.err = errors.New("market down")
	deps.news.err = errors.New("news down")

	r, err := deps.service(observability.NewMetrics()).Build(context.Background(), "c1", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if r.AccountsSummary == "" {
		t.Error("expected fallback narrative")
	}
	if r.Stocks[0] != service.FallbackQuote("^GSPC") {
		t.Errorf("expected static quote, got %+v", r.Stocks[0])
	}
	if r.NewsAISummary != service.FallbackNewsSummary("finance") {
		t.Errorf("expected static news summary, got %q", r.NewsAISummary)
	}
	if r.DateRange != "" {
		t.Errorf("expected empty date range without window, got %q", r.DateRange)
	}
}

func TestReportService_UnknownCustomer(t *testing.T) {
	deps := newReportDeps()
	deps.bank.customer = nil

	_, err := deps.service(observability.NewMetrics()).Build(context.Background(), "nope", nil)

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReportService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newReportDeps().service(observability.NewMetrics()).Build(ctx, "c1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

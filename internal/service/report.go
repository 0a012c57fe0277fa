// Package service holds the newsletter use cases: snapshot loading,
// aggregation, enrichment, report assembly, delivery and registration.
package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
)

var tracer = otel.Tracer("service")

// ReportService assembles the flat report a newsletter is rendered from.
type ReportService struct {
	loader   *SnapshotLoader
	narrator *Narrator
	market   *MarketEnricher
	news     *NewsEnricher
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService wires the report pipeline.
func NewReportService(
	loader *SnapshotLoader,
	narrator *Narrator,
	market *MarketEnricher,
	news *NewsEnricher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		loader:   loader,
		narrator: narrator,
		market:   market,
		news:     news,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// Build fetches, summarises and enriches the report for customerID.
// A nil window covers all time. Only an unknown customer or a cancelled
// context fail the build; every enrichment degrades to static data.
func (s *ReportService) Build(ctx context.Context, customerID string, window *domain.Window) (*domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ReportService.Build")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("report", time.Since(start))
	}()

	snap, err := s.loader.Load(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	now := s.now()
	summary := Summarize(snap, window, now)

	var (
		narrative string
		stocks    []domain.StockQuote
		digest    domain.NewsDigest
	)

	// none of these return an error; they fall back internally
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		narrative = s.narrator.Generate(gCtx, &summary, window)
		return nil
	})
	g.Go(func() error {
		stocks = s.market.Quotes(gCtx)
		return nil
	})
	g.Go(func() error {
		digest = s.news.Digest(gCtx)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &domain.Report{
		CustomerID:            customerID,
		Name:                  summary.Name,
		NetWorth:              summary.NetWorth,
		MoneyOwed:             summary.TotalDebt,
		MoneySpent:            summary.MoneySpent,
		MoneyAdded:            summary.MoneyAdded,
		AccountBalances:       summary.AccountBalances,
		LargestTransactions:   summary.TopTransactions,
		LargestDeposits:       summary.TopDeposits,
		TopSpendingCategories: summary.TopSpendingCategories,
		SpendingTrend:         summary.SpendingTrend,
		AccountsSummary:       narrative,
		Stocks:                stocks,
		NewsAISummary:         digest.Summary,
		NewsArticles:          digest.Articles,
		GeneratedAt:           now.UTC(),
		Warnings:              snap.Warnings,
	}
	if window != nil {
		report.DateRange = fmt.Sprintf("%dd", window.Days)
	}

	s.logger.Info("report built",
		zap.String("customer_id", customerID),
		zap.String("date_range", report.DateRange),
		zap.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

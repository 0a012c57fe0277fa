package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
)

const (
	narrativeSystemPrompt = "You are a financial assistant that summarizes banking data in 1-2 concise sentences."
	narrativeMaxTokens    = 150
)

// Narrator turns a financial summary into a short personalised headline.
// It never fails: any LLM problem yields a templated sentence.
type Narrator struct {
	llm      port.Completer
	timeout  time.Duration
	sanitize *bluemonday.Policy
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewNarrator creates a Narrator. timeout bounds each completion.
func NewNarrator(llm port.Completer, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Narrator {
	return &Narrator{
		llm:      llm,
		timeout:  timeout,
		sanitize: bluemonday.StrictPolicy(),
		metrics:  metrics,
		logger:   logger,
	}
}

// Generate returns the accounts summary for s.
func (n *Narrator) Generate(ctx context.Context, s *domain.CustomerFinancialSummary, window *domain.Window) string {
	ctx, span := tracer.Start(ctx, "Narrator.Generate")
	defer span.End()

	if n.llm == nil {
		n.metrics.IncrFallback(observability.ComponentNarrative)
		return FallbackNarrative(s)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	text, err := n.llm.Complete(ctx, narrativeSystemPrompt, NarrativePrompt(s, window), narrativeMaxTokens)
	if err == nil {
		text = cleanText(n.sanitize, text)
	}
	if err != nil || text == "" {
		n.logger.Warn("narrative generation failed, using fallback",
			zap.String("name", s.Name),
			zap.Error(err),
		)
		n.metrics.IncrFallback(observability.ComponentNarrative)
		return FallbackNarrative(s)
	}
	return text
}

// NarrativePrompt builds the LLM prompt for s.
func NarrativePrompt(s *domain.CustomerFinancialSummary, window *domain.Window) string {
	period := ""
	if window != nil {
		period = fmt.Sprintf(" in the last %d days", window.Days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a friendly, personalized financial headline for a newsletter addressed directly to %s. ", s.Name)
	fmt.Fprintf(&b, "Reference their current financial situation (net worth: $%.2f, recent spending: $%.2f, deposits: $%.2f%s, debt: $%.2f) ",
		s.NetWorth, s.MoneySpent, s.MoneyAdded, period, s.TotalDebt)
	b.WriteString("but focus on insights rather than just numbers. Use 'you' instead of 'they'. Keep it to 2-3 engaging sentences. ")

	if len(s.TopSpendingCategories) > 0 {
		fmt.Fprintf(&b, "Their top spending categories include %s. ", strings.Join(s.TopSpendingCategories, ", "))
	}
	if s.SpendingTrend != "" && s.SpendingTrend != domain.TrendUnknown {
		fmt.Fprintf(&b, "Their spending trend is %s. ", s.SpendingTrend)
	}
	if len(s.TopTransactions) > 0 {
		top := s.TopTransactions[0]
		amt := top.Amount
		if amt < 0 {
			amt = -amt
		}
		fmt.Fprintf(&b, "Their largest recent transaction was $%.2f for %s. ", amt, top.Description)
	}
	return strings.TrimSpace(b.String())
}

// FallbackNarrative is the deterministic sentence used when the LLM is
// unavailable. It only reads numeric fields and the name.
func FallbackNarrative(s *domain.CustomerFinancialSummary) string {
	recent := "saved more than spent"
	switch {
	case s.MoneySpent > s.MoneyAdded:
		recent = "spent more than earned"
	case s.MoneySpent == s.MoneyAdded:
		recent = "spent about as much as earned"
	}
	return fmt.Sprintf("%s has a net worth of $%.2f with $%.2f in debt. Recently %s.",
		s.Name, s.NetWorth, s.TotalDebt, recent)
}

// cleanText strips markup from model output and undoes the entity escaping
// the sanitizer applies; the renderer escapes on output.
func cleanText(p *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(s)))
}

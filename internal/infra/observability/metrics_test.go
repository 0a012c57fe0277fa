package observability_test

import (
	"testing"

	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
)

func TestNewMetrics_Twice(t *testing.T) {
	// private registries: creating two sets must not panic
	_ = observability.NewMetrics()
	_ = observability.NewMetrics()
}

func TestGetNewsletterSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrNewsletter("sent")
	m.IncrNewsletter("sent")
	m.IncrNewsletter("sent")
	m.IncrNewsletter("failed")
	m.IncrFallback(observability.ComponentNarrative)
	m.IncrFallback(observability.ComponentMarket)
	m.IncrFallback(observability.ComponentMarket)
	m.RecordTokens(100, 50)
	m.RecordTokens(50, 0)
	m.IncrCacheHit("quotes")
	m.IncrCacheMiss("news")

	snap := m.GetNewsletterSnapshot()

	if snap.NewslettersSent != 3 || snap.NewslettersFailed != 1 {
		t.Errorf("expected 3 sent / 1 failed, got %d / %d", snap.NewslettersSent, snap.NewslettersFailed)
	}
	if snap.FailureRate != 0.25 {
		t.Errorf("expected failure rate 0.25, got %f", snap.FailureRate)
	}
	if snap.NarrativeFallbacks != 1 || snap.MarketFallbacks != 2 || snap.NewsFallbacks != 0 {
		t.Errorf("unexpected fallbacks: %+v", snap)
	}
	if snap.AvgTokensPerRequest != 100 {
		t.Errorf("expected 100 avg tokens, got %f", snap.AvgTokensPerRequest)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected cache hit rate 0.5, got %f", snap.CacheHitRate)
	}
}

func TestGetNewsletterSnapshot_Empty(t *testing.T) {
	snap := observability.NewMetrics().GetNewsletterSnapshot()
	if snap.FailureRate != 0 || snap.AvgTokensPerRequest != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zero rates, got %+v", snap)
	}
	if snap.Period != "all_time" {
		t.Errorf("expected all_time, got %s", snap.Period)
	}
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
)

// Fallback components, used as the "component" label.
const (
	ComponentNarrative = "narrative"
	ComponentMarket    = "market"
	ComponentNews      = "news"
)

// Metrics holds all Prometheus metrics for the newsletter service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	llmRequests     prometheus.Counter
	newsletters     *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	seededRecords   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "penny_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		llmRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "penny_llm_requests_total",
				Help: "Total successful LLM completions.",
			},
		),
		newsletters: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_newsletters_total",
				Help: "Newsletters processed, by outcome.",
			},
			[]string{"status"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_fallbacks_total",
				Help: "Static fallbacks substituted for failed enrichments.",
			},
			[]string{"component"},
		),
		seededRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "penny_seeded_records_total",
				Help: "Synthetic sandbox records created, by kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage of one completion.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.llmRequests.Inc()
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrNewsletter counts a newsletter outcome ("sent" or "failed").
func (m *Metrics) IncrNewsletter(status string) {
	m.newsletters.WithLabelValues(status).Inc()
}

// IncrFallback counts a static fallback for component.
func (m *Metrics) IncrFallback(component string) {
	m.fallbacks.WithLabelValues(component).Inc()
}

// IncrSeeded counts a synthetic record of the given kind.
func (m *Metrics) IncrSeeded(kind string) {
	m.seededRecords.WithLabelValues(kind).Inc()
}

// GetNewsletterSnapshot returns a snapshot suitable for the
// GET /v1/metrics/newsletter endpoint.
func (m *Metrics) GetNewsletterSnapshot() *domain.NewsletterMetrics {
	// Prometheus counters expose cumulative values.
	sent := getCounterValue(m.newsletters, "sent")
	failed := getCounterValue(m.newsletters, "failed")
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	llmRequests := readCounter(m.llmRequests)

	hits, misses := float64(0), float64(0)
	for _, c := range []string{"quotes", "news"} {
		hits += getCounterValue(m.cacheHits, c)
		misses += getCounterValue(m.cacheMisses, c)
	}

	failureRate := float64(0)
	avgTokens := float64(0)
	cacheHitRate := float64(0)
	if sent+failed > 0 {
		failureRate = failed / (sent + failed)
	}
	if llmRequests > 0 {
		avgTokens = (promptTokens + completionTokens) / llmRequests
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	// gpt-3.5-turbo list price: $0.0005/1k prompt, $0.0015/1k completion
	estimatedCost := (promptTokens/1000)*0.0005 + (completionTokens/1000)*0.0015

	return &domain.NewsletterMetrics{
		NewslettersSent:     int64(sent),
		NewslettersFailed:   int64(failed),
		FailureRate:         failureRate,
		NarrativeFallbacks:  int64(getCounterValue(m.fallbacks, ComponentNarrative)),
		MarketFallbacks:     int64(getCounterValue(m.fallbacks, ComponentMarket)),
		NewsFallbacks:       int64(getCounterValue(m.fallbacks, ComponentNews)),
		AvgTokensPerRequest: avgTokens,
		EstimatedCostUsd:    estimatedCost,
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

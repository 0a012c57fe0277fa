package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// NewsletterMetrics is returned by GET /v1/metrics/newsletter.
type NewsletterMetrics struct {
	NewslettersSent     int64   `json:"newslettersSent"`
	NewslettersFailed   int64   `json:"newslettersFailed"`
	FailureRate         float64 `json:"failureRate"`
	NarrativeFallbacks  int64   `json:"narrativeFallbacks"`
	MarketFallbacks     int64   `json:"marketFallbacks"`
	NewsFallbacks       int64   `json:"newsFallbacks"`
	AvgTokensPerRequest float64 `json:"avgTokensPerRequest"`
	EstimatedCostUsd    float64 `json:"estimatedCostUsd"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Period              string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// Package handler exposes the newsletter service over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
	"github.com/boddenberg/penny-newsletter-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Services bundles what the routes call into. Store, Registration and
// Unsubscribe are nil when Supabase is not configured.
type Services struct {
	Reports      *service.ReportService
	Newsletters  *service.NewsletterService
	Registration *service.RegistrationService
	Unsubscribe  *service.UnsubscribeService
	Store        port.SubscriberStore
	CronSecret   string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/v1/metrics/newsletter", newsletterMetricsHandler(metrics))

	// --- Reports ---
	if svcs.Reports != nil {
		r.Post("/get_all_user_data/{customer_id}", reportHandler(svcs.Reports, logger))
	}
	if svcs.Newsletters != nil {
		r.Get("/newsletter/{customer_id}/preview", previewHandler(svcs.Newsletters, logger))
	}

	// --- Routes backed by the subscriber store ---
	r.Group(func(r chi.Router) {
		if svcs.Store == nil {
			r.Use(storeUnavailable)
		}

		r.Post("/register", registerHandler(svcs.Registration, logger))
		r.Get("/unsubscribe", unsubscribeHandler(svcs.Unsubscribe, logger))

		r.Route("/cron", func(r chi.Router) {
			r.Use(CronAuthMiddleware(svcs.CronSecret, logger))
			r.Get("/send_weekly_newsletters", cronHandler(svcs.Newsletters, domain.FrequencyWeekly, logger))
			r.Get("/send_monthly_newsletters", cronHandler(svcs.Newsletters, domain.FrequencyMonthly, logger))
		})
	})

	return r
}

func storeUnavailable(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "subscriber store unavailable: Supabase not configured")
	})
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(store port.SubscriberStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "penny-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func newsletterMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetNewsletterSnapshot())
	}
}

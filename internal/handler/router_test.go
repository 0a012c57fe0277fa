package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/handler"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
)

// --- Mocks ---

type memStore struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscriber
	last map[string]*domain.LastNewsletter
	err  error
}

func newMemStore(subs ...domain.Subscriber) *memStore {
	s := &memStore{subs: map[string]*domain.Subscriber{}, last: map[string]*domain.LastNewsletter{}}
	for i := range subs {
		sub := subs[i]
		s.subs[sub.Email] = &sub
	}
	return s
}

func (m *memStore) GetSubscriber(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "subscriber", ID: email}
	}
	return sub, nil
}

func (m *memStore) UpsertSubscriber(_ context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.Email] = &cp
	return &cp, nil
}

func (m *memStore) ListSubscribers(_ context.Context, f domain.Frequency) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.subs {
		if s.Frequency == f {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) SaveLastNewsletter(_ context.Context, email string, last *domain.LastNewsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[email] = last
	return nil
}

func (m *memStore) SetFrequency(_ context.Context, email string, f domain.Frequency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[email]
	if !ok {
		return &domain.ErrNotFound{Resource: "subscriber", ID: email}
	}
	sub.Frequency = f
	return nil
}

func (m *memStore) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func serve(router http.Handler, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	rec := serve(router, http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_DegradedStore(t *testing.T) {
	store := newMemStore()
	store.err = context.DeadlineExceeded
	router := handler.NewRouter(handler.Services{Store: store}, observability.NewMetrics(), zap.NewNop())

	rec := serve(router, http.MethodGet, "/healthz", "", nil)

	var h domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if h.Status != "degraded" || len(h.Services) != 2 {
		t.Errorf("expected degraded with 2 services, got %+v", h)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	rec := serve(router, http.MethodGet, "/readyz", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrNewsletter("sent")
	router := handler.NewRouter(handler.Services{}, metrics, zap.NewNop())

	rec := serve(router, http.MethodGet, "/metrics", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "penny_newsletters_total") {
		t.Error("expected penny metrics in the exposition")
	}
}

func TestNewsletterMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrNewsletter("sent")
	metrics.IncrNewsletter("failed")
	router := handler.NewRouter(handler.Services{}, metrics, zap.NewNop())

	rec := serve(router, http.MethodGet, "/v1/metrics/newsletter", "", nil)

	var snap domain.NewsletterMetrics
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.NewslettersSent != 1 || snap.FailureRate != 0.5 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestStoreRoutesUnavailable(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/register"},
		{http.MethodGet, "/unsubscribe?token=x"},
		{http.MethodGet, "/cron/send_weekly_newsletters"},
		{http.MethodGet, "/cron/send_monthly_newsletters"},
	} {
		rec := serve(router, tc.method, tc.path, "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestCronRequiresSecret(t *testing.T) {
	h := newHarness(t)
	router := h.router("s3cret")

	rec := serve(router, http.MethodGet, "/cron/send_weekly_newsletters", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = serve(router, http.MethodGet, "/cron/send_weekly_newsletters", "", map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}

	rec = serve(router, http.MethodGet, "/cron/send_weekly_newsletters", "", map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with the secret, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReport_InvalidDateRange(t *testing.T) {
	router := newHarness(t).router("")

	rec := serve(router, http.MethodPost, "/get_all_user_data/cust-1", `{"date_range":"thirty"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = serve(router, http.MethodPost, "/get_all_user_data/cust-1", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestUnsubscribe_MissingToken(t *testing.T) {
	router := newHarness(t).router("")

	rec := serve(router, http.MethodGet, "/unsubscribe", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = serve(router, http.MethodGet, "/unsubscribe?token=forged", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a forged token, got %d", rec.Code)
	}
}

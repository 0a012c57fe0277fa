package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

// ============================================================
// Subscriber store (implements port.SubscriberStore)
// ============================================================

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailFilter(email string) string {
	return "email=eq." + url.QueryEscape(normalizeEmail(email))
}

// GetSubscriber fetches the subscriber registered under email.
func (c *Client) GetSubscriber(ctx context.Context, email string) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscriber")
	defer span.End()

	rows, err := resilience.Call(ctx, c.cb, c.cfg, true, func() ([]domain.Subscriber, error) {
		body, err := c.doGet(ctx, fmt.Sprintf("%s?%s&limit=1", subscribersTable, emailFilter(email)))
		if err != nil {
			return nil, err
		}
		return decodeSubscribers(body)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/subscribers", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "subscriber", ID: normalizeEmail(email)}
	}
	return &rows[0], nil
}

// UpsertSubscriber creates or replaces the record keyed by email.
func (c *Client) UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSubscriber")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", sub.CustomerID))

	row := *sub
	row.Email = normalizeEmail(sub.Email)

	rows, err := resilience.Call(ctx, c.cb, c.cfg, false, func() ([]domain.Subscriber, error) {
		body, err := c.doUpsert(ctx, subscribersTable, "email", []domain.Subscriber{row})
		if err != nil {
			return nil, err
		}
		return decodeSubscribers(body)
	})
	if err != nil {
		if conflict, ok := err.(*domain.ErrConflict); ok {
			return nil, conflict
		}
		return nil, &domain.ErrExternalService{Service: "supabase/subscribers", Err: err}
	}
	if len(rows) == 0 {
		return &row, nil
	}
	return &rows[0], nil
}

// ListSubscribers returns every subscriber on the given tier.
func (c *Client) ListSubscribers(ctx context.Context, frequency domain.Frequency) ([]domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListSubscribers")
	defer span.End()
	span.SetAttributes(attribute.String("frequency", string(frequency)))

	path := fmt.Sprintf("%s?frequency=eq.%s&order=email.asc", subscribersTable, url.QueryEscape(string(frequency)))
	rows, err := resilience.Call(ctx, c.cb, c.cfg, true, func() ([]domain.Subscriber, error) {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return nil, err
		}
		return decodeSubscribers(body)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/subscribers", Err: err}
	}
	return rows, nil
}

// SaveLastNewsletter stores the audit copy of the last sent report.
func (c *Client) SaveLastNewsletter(ctx context.Context, email string, last *domain.LastNewsletter) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveLastNewsletter")
	defer span.End()

	return c.patchSubscriber(ctx, email, map[string]any{"last_newsletter_data": last})
}

// SetFrequency moves a subscriber to another tier.
func (c *Client) SetFrequency(ctx context.Context, email string, frequency domain.Frequency) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetFrequency")
	defer span.End()
	span.SetAttributes(attribute.String("frequency", string(frequency)))

	return c.patchSubscriber(ctx, email, map[string]any{"frequency": frequency})
}

func (c *Client) patchSubscriber(ctx context.Context, email string, fields map[string]any) error {
	n, err := resilience.Call(ctx, c.cb, c.cfg, false, func() (int, error) {
		return c.doPatch(ctx, fmt.Sprintf("%s?%s", subscribersTable, emailFilter(email)), fields)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/subscribers", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "subscriber", ID: normalizeEmail(email)}
	}
	return nil
}

func decodeSubscribers(body []byte) ([]domain.Subscriber, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []domain.Subscriber
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode subscribers: %w", err))
	}
	return rows, nil
}

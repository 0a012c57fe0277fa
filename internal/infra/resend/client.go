// Package resend delivers email through the Resend HTTP API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

var tracer = otel.Tracer("resend")

// Client sends emails. Sends are never retried; each carries a fresh
// Idempotency-Key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
}

// NewClient creates a Resend client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send posts one email and returns the provider message ID.
func (c *Client) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "Resend.Send")
	defer span.End()
	span.SetAttributes(attribute.Int("email.recipients", len(msg.To)))

	if c.apiKey == "" {
		return "", &domain.ErrUnavailable{Component: "email"}
	}
	if len(msg.To) == 0 {
		return "", &domain.ErrValidation{Field: "to", Message: "at least one recipient is required"}
	}

	body, err := json.Marshal(sendRequest{From: msg.From, To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
	if err != nil {
		return "", err
	}
	idempotencyKey := uuid.NewString()

	id, err := resilience.Call(ctx, c.cb, resilience.Config{}, false, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
		if err != nil {
			return "", resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Idempotency-Key", idempotencyKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("resend returned status %d: %s", resp.StatusCode, string(raw))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return "", resilience.Permanent(err)
			}
			return "", err
		}

		var sr sendResponse
		if err := json.Unmarshal(raw, &sr); err != nil {
			return "", resilience.Permanent(err)
		}
		return sr.ID, nil
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "resend", Err: err}
	}
	span.SetAttributes(attribute.String("email.id", id))
	return id, nil
}

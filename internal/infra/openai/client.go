// Package openai calls an OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

var tracer = otel.Tracer("openai")

// ErrEmptyCompletion is returned when the provider answers without content.
var ErrEmptyCompletion = errors.New("completion has no content")

// Client is a minimal chat completions client. Concurrent calls are capped
// by a bulkhead sized from cfg.MaxConcurrency.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
}

// NewClient creates a chat completions client. metrics may be nil.
func NewClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics:    metrics,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a system + user message pair and returns the trimmed
// content of the first choice.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAI.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	if c.apiKey == "" {
		return "", &domain.ErrUnavailable{Component: "llm"}
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "llm bulkhead"}
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	out, err := resilience.Call(ctx, c.cb, c.cfg, true, func() (*chatResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(msg))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}

		var cr chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return nil, resilience.Permanent(err)
		}
		return &cr, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", &domain.ErrTimeout{Operation: "llm completion"}
		}
		return "", &domain.ErrExternalService{Service: "openai", Err: err}
	}

	if c.metrics != nil {
		c.metrics.RecordTokens(out.Usage.PromptTokens, out.Usage.CompletionTokens)
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", out.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", out.Usage.CompletionTokens),
	)

	if len(out.Choices) == 0 {
		return "", &domain.ErrExternalService{Service: "openai", Err: ErrEmptyCompletion}
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", &domain.ErrExternalService{Service: "openai", Err: ErrEmptyCompletion}
	}
	return content, nil
}

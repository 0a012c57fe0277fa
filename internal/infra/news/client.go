// Package news fetches headlines from NewsAPI.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

var tracer = otel.Tracer("news")

// Client queries the /v2/everything endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	now        func() time.Time
}

// NewClient creates a NewsAPI client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		now:        time.Now,
	}
}

type everythingResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// TopArticles returns up to limit of today's most popular articles on topic.
func (c *Client) TopArticles(ctx context.Context, topic string, limit int) ([]domain.NewsArticle, error) {
	ctx, span := tracer.Start(ctx, "News.TopArticles")
	defer span.End()
	span.SetAttributes(attribute.String("news.topic", topic))

	if c.apiKey == "" {
		return nil, &domain.ErrUnavailable{Component: "news"}
	}

	q := url.Values{}
	q.Set("q", topic)
	q.Set("from", c.now().Format("2006-01-02"))
	q.Set("sortBy", "popularity")
	q.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + "/v2/everything?" + q.Encode()

	articles, err := resilience.Call(ctx, c.cb, c.cfg, true, func() ([]domain.NewsArticle, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, resilience.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var er everythingResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return nil, fmt.Errorf("news API returned status %d: %w", resp.StatusCode, err)
		}
		if resp.StatusCode != http.StatusOK || er.Status != "ok" {
			err := fmt.Errorf("news API returned status %d: %s %s", resp.StatusCode, er.Code, er.Message)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}

		out := make([]domain.NewsArticle, 0, limit)
		for _, a := range er.Articles {
			if len(out) == limit {
				break
			}
			if strings.TrimSpace(a.Title) == "" || a.Title == "[Removed]" {
				continue
			}
			out = append(out, domain.NewsArticle{
				Title:       a.Title,
				Source:      a.Source.Name,
				URL:         a.URL,
				PublishedAt: a.PublishedAt,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "news", Err: err}
	}
	return articles, nil
}

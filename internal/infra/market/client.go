// Package market fetches stock quotes from the Yahoo Finance chart API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

var tracer = otel.Tracer("market")

// Client reads two days of hourly closes per ticker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates a market data client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetQuote returns the latest close of ticker and whether it is up from the
// first close of the two-day range.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*domain.StockQuote, error) {
	ctx, span := tracer.Start(ctx, "Market.GetQuote")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker))

	quote, err := resilience.Call(ctx, c.cb, c.cfg, true, func() (*domain.StockQuote, error) {
		u := fmt.Sprintf("%s/v8/finance/chart/%s?range=2d&interval=1h", c.baseURL, url.PathEscape(ticker))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		// the chart endpoint rejects requests without a browser-like agent
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; penny-newsletter)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, resilience.Permanent(&domain.ErrNotFound{Resource: "ticker", ID: ticker})
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chart API returned status %d", resp.StatusCode)
		}

		var cr chartResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return nil, resilience.Permanent(err)
		}
		return toQuote(ticker, &cr)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "market", Err: err}
	}
	return quote, nil
}

func toQuote(ticker string, cr *chartResponse) (*domain.StockQuote, error) {
	if cr.Chart.Error != nil {
		return nil, resilience.Permanent(fmt.Errorf("chart API error %s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description))
	}
	if len(cr.Chart.Result) == 0 {
		return nil, resilience.Permanent(fmt.Errorf("no chart data for %s", ticker))
	}
	res := cr.Chart.Result[0]

	var closes []float64
	if len(res.Indicators.Quote) > 0 {
		for _, c := range res.Indicators.Quote[0].Close {
			if c != nil {
				closes = append(closes, *c)
			}
		}
	}
	if len(closes) == 0 {
		return nil, resilience.Permanent(fmt.Errorf("no closes for %s", ticker))
	}

	first, last := closes[0], closes[len(closes)-1]
	status := domain.QuoteDown
	if last > first {
		status = domain.QuoteUp
	}
	name := res.Meta.ShortName
	if name == "" {
		name = ticker
	}
	return &domain.StockQuote{
		Ticker: ticker,
		Name:   name,
		Price:  last,
		Status: status,
		Live:   true,
	}, nil
}

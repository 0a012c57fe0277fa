package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/cache"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
)

// Static market data used when the live quote is unavailable.
var fallbackQuotes = map[string]domain.StockQuote{
	"^GSPC": {Ticker: "^GSPC", Name: "S&P 500", Price: 5769, Status: domain.QuoteDown},
	"^DJI":  {Ticker: "^DJI", Name: "Dow Jones", Price: 42794, Status: domain.QuoteUp},
	"^IXIC": {Ticker: "^IXIC", Name: "Nasdaq", Price: 18193, Status: domain.QuoteDown},
	"AAPL":  {Ticker: "AAPL", Name: "Apple", Price: 169, Status: domain.QuoteUp},
	"MSFT":  {Ticker: "MSFT", Name: "Microsoft", Price: 416, Status: domain.QuoteUp},
	"GOOGL": {Ticker: "GOOGL", Name: "Alphabet", Price: 147, Status: domain.QuoteDown},
	"AMZN":  {Ticker: "AMZN", Name: "Amazon", Price: 178, Status: domain.QuoteUp},
	"META":  {Ticker: "META", Name: "Meta", Price: 468, Status: domain.QuoteDown},
}

const (
	newsArticleLimit     = 5
	newsSummaryMaxTokens = 120
	newsSummaryFailed    = "Unable to generate news summary."
	newsSystemPrompt     = "You are a helpful financial assistant."
)

// FallbackQuote returns the static quote for ticker. Unknown tickers get
// price 0 and status Unknown.
func FallbackQuote(ticker string) domain.StockQuote {
	if q, ok := fallbackQuotes[ticker]; ok {
		return q
	}
	return domain.StockQuote{Ticker: ticker, Name: ticker, Status: domain.QuoteUnknown}
}

// FallbackNewsSummary is used when no headlines could be fetched.
func FallbackNewsSummary(topic string) string {
	if topic == "" || topic == "finance" {
		return "Your financial summary and market analysis for today's economic landscape."
	}
	return fmt.Sprintf("Your %s summary and market analysis for today's economic landscape.", topic)
}

// MarketEnricher resolves quotes for the configured tickers.
type MarketEnricher struct {
	quotes  port.QuoteFetcher
	tickers []string
	cache   *cache.InMemory[domain.StockQuote]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMarketEnricher creates a market enricher. quotes may be nil, in which
// case only static data is served.
func NewMarketEnricher(quotes port.QuoteFetcher, tickers []string, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *MarketEnricher {
	return &MarketEnricher{
		quotes:  quotes,
		tickers: tickers,
		cache:   cache.New[domain.StockQuote](ttl),
		metrics: metrics,
		logger:  logger,
	}
}

// Quotes returns one quote per ticker, in configuration order. Each ticker
// falls back independently.
func (m *MarketEnricher) Quotes(ctx context.Context) []domain.StockQuote {
	ctx, span := tracer.Start(ctx, "MarketEnricher.Quotes")
	defer span.End()

	out := make([]domain.StockQuote, 0, len(m.tickers))
	for _, ticker := range m.tickers {
		out = append(out, m.quote(ctx, ticker))
	}
	return out
}

func (m *MarketEnricher) quote(ctx context.Context, ticker string) domain.StockQuote {
	if m.quotes == nil {
		m.metrics.IncrFallback(observability.ComponentMarket)
		return FallbackQuote(ticker)
	}

	q, hit, err := m.cache.GetOrLoad(ctx, ticker, func(ctx context.Context) (domain.StockQuote, error) {
		live, err := m.quotes.GetQuote(ctx, ticker)
		if err != nil {
			return domain.StockQuote{}, err
		}
		// prefer the friendly index names
		if fb, ok := fallbackQuotes[ticker]; ok {
			live.Name = fb.Name
		}
		return *live, nil
	})
	if hit {
		m.metrics.IncrCacheHit("quotes")
	} else {
		m.metrics.IncrCacheMiss("quotes")
	}
	if err != nil {
		m.logger.Warn("live quote unavailable, using static data",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
		m.metrics.IncrExternalError("market")
		m.metrics.IncrFallback(observability.ComponentMarket)
		return FallbackQuote(ticker)
	}
	return q
}

// NewsEnricher fetches headlines and summarises them.
type NewsEnricher struct {
	news     port.NewsFetcher
	llm      port.Completer
	topic    string
	timeout  time.Duration
	cache    *cache.InMemory[domain.NewsDigest]
	sanitize *bluemonday.Policy
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewNewsEnricher creates a news enricher. news and llm may be nil.
func NewNewsEnricher(news port.NewsFetcher, llm port.Completer, topic string, llmTimeout, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *NewsEnricher {
	return &NewsEnricher{
		news:     news,
		llm:      llm,
		topic:    topic,
		timeout:  llmTimeout,
		cache:    cache.New[domain.NewsDigest](ttl),
		sanitize: bluemonday.StrictPolicy(),
		metrics:  metrics,
		logger:   logger,
	}
}

// Digest returns today's headlines and their summary. Digests are cached
// per topic only when live headlines were found.
func (n *NewsEnricher) Digest(ctx context.Context) domain.NewsDigest {
	ctx, span := tracer.Start(ctx, "NewsEnricher.Digest")
	defer span.End()

	if d, ok := n.cache.Get(n.topic); ok {
		n.metrics.IncrCacheHit("news")
		return d
	}
	n.metrics.IncrCacheMiss("news")

	articles := n.fetchArticles(ctx)
	if len(articles) == 0 {
		n.metrics.IncrFallback(observability.ComponentNews)
		return domain.NewsDigest{Summary: FallbackNewsSummary(n.topic), Articles: []domain.NewsArticle{}}
	}

	digest := domain.NewsDigest{Summary: n.summarize(ctx, articles), Articles: articles}
	if digest.Summary != newsSummaryFailed {
		n.cache.Set(n.topic, digest)
	}
	return digest
}

func (n *NewsEnricher) fetchArticles(ctx context.Context) []domain.NewsArticle {
	if n.news == nil {
		return nil
	}
	articles, err := n.news.TopArticles(ctx, n.topic, newsArticleLimit)
	if err != nil {
		n.logger.Warn("news fetch failed, using static summary",
			zap.String("topic", n.topic),
			zap.Error(err),
		)
		n.metrics.IncrExternalError("news")
		return nil
	}
	for i := range articles {
		articles[i].Title = cleanText(n.sanitize, articles[i].Title)
		articles[i].Source = cleanText(n.sanitize, articles[i].Source)
	}
	return articles
}

// NewsSummaryPrompt lists the headlines for the LLM.
func NewsSummaryPrompt(articles []domain.NewsArticle) string {
	var b strings.Builder
	b.WriteString("Here are today's top financial news headlines:\n")
	for _, a := range articles {
		fmt.Fprintf(&b, "- %s (%s)\n", a.Title, a.Source)
	}
	b.WriteString("\nCreate a brief, insightful summary of these financial headlines in 1-2 sentences. ")
	b.WriteString("Focus on the most important trends or events.")
	return b.String()
}

func (n *NewsEnricher) summarize(ctx context.Context, articles []domain.NewsArticle) string {
	if n.llm == nil {
		n.metrics.IncrFallback(observability.ComponentNews)
		return newsSummaryFailed
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	text, err := n.llm.Complete(ctx, newsSystemPrompt, NewsSummaryPrompt(articles), newsSummaryMaxTokens)
	if err == nil {
		text = cleanText(n.sanitize, text)
	}
	if err != nil || text == "" {
		n.logger.Warn("news summary failed", zap.Error(err))
		n.metrics.IncrFallback(observability.ComponentNews)
		return newsSummaryFailed
	}
	return text
}

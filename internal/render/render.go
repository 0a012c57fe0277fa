// Package render turns a report into the newsletter HTML document.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
)

//go:embed templates/newsletter.html.tmpl
var templateFS embed.FS

const maxArticles = 4

var indexNames = map[string]string{
	"^GSPC": "S&P 500",
	"^DJI":  "Dow Jones",
	"^IXIC": "Nasdaq Composite",
}

var newsletterTmpl = template.Must(template.New("newsletter.html.tmpl").
	Funcs(template.FuncMap{
		"currency": Currency,
		"inc":      func(i int) int { return i + 1 },
		"safeCSS":  func(s string) template.CSS { return template.CSS(s) },
	}).
	ParseFS(templateFS, "templates/newsletter.html.tmpl"))

// Options carries the per-send parts of the document.
type Options struct {
	Date           time.Time
	UnsubscribeURL string
}

type balanceRow struct {
	Label   string
	Balance float64
}

type stockCard struct {
	Name  string
	Price float64
	Color string
}

type articleRow struct {
	Title  string
	URL    string
	Source string
	Date   string
}

type overviewCard struct {
	Label  string
	Amount float64
}

type view struct {
	Report         *domain.Report
	Date           string
	Year           int
	Cards          []overviewCard
	Balances       []balanceRow
	StockRows      [][]stockCard
	Articles       []articleRow
	UnsubscribeURL string
}

// Render produces the newsletter HTML for r.
func Render(r *domain.Report, opts Options) (string, error) {
	if r == nil {
		return "", fmt.Errorf("render: nil report")
	}
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	v := view{
		Report:         r,
		Date:           date.Format("January 02, 2006"),
		Year:           date.Year(),
		Cards:          overviewCards(r),
		Balances:       balances(r.AccountBalances),
		StockRows:      stockRows(r.Stocks),
		Articles:       articles(r.NewsArticles),
		UnsubscribeURL: opts.UnsubscribeURL,
	}

	var buf bytes.Buffer
	if err := newsletterTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render newsletter: %w", err)
	}
	return buf.String(), nil
}

// Subject is the email subject line for r.
func Subject(r *domain.Report, date time.Time) string {
	return fmt.Sprintf("Financial Insights Newsletter for %s - %s", r.Name, date.Format("Jan 02, 2006"))
}

// Currency formats v as $1,234.56 (negative values as -$1,234.56).
func Currency(v float64) string {
	s := decimal.NewFromFloat(v).Round(2).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "$" + b.String() + "." + frac
	if neg && out != "$0.00" {
		out = "-" + out
	}
	return out
}

func overviewCards(r *domain.Report) []overviewCard {
	return []overviewCard{
		{Label: "Money Spent", Amount: r.MoneySpent},
		{Label: "Money Added", Amount: r.MoneyAdded},
		{Label: "Money Owed", Amount: r.MoneyOwed},
	}
}

func balances(m map[string]float64) []balanceRow {
	rows := make([]balanceRow, 0, len(m))
	for label, bal := range m {
		rows = append(rows, balanceRow{Label: label, Balance: bal})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}

func stockRows(quotes []domain.StockQuote) [][]stockCard {
	var rows [][]stockCard
	for i := 0; i < len(quotes); i += 2 {
		row := []stockCard{card(quotes[i])}
		if i+1 < len(quotes) {
			row = append(row, card(quotes[i+1]))
		}
		rows = append(rows, row)
	}
	return rows
}

func card(q domain.StockQuote) stockCard {
	name := q.Name
	if name == "" || name == q.Ticker {
		if friendly, ok := indexNames[q.Ticker]; ok {
			name = friendly
		} else {
			name = q.Ticker
		}
	}
	color := "#dc3545"
	if q.Status == domain.QuoteUp {
		color = "#28a745"
	}
	return stockCard{Name: name, Price: q.Price, Color: color}
}

func articles(in []domain.NewsArticle) []articleRow {
	n := len(in)
	if n > maxArticles {
		n = maxArticles
	}
	out := make([]articleRow, 0, n)
	for _, a := range in[:n] {
		date := a.PublishedAt
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			date = t.Format("January 02, 2006")
		}
		out = append(out, articleRow{Title: a.Title, URL: a.URL, Source: a.Source, Date: date})
	}
	return out
}

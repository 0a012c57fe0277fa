// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
)

// BankingReader reads customer data from the banking sandbox.
type BankingReader interface {
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	ListAccounts(ctx context.Context, customerID string) ([]domain.Account, error)
	ListDeposits(ctx context.Context, accountID string) ([]domain.Transaction, error)
	ListWithdrawals(ctx context.Context, accountID string) ([]domain.Transaction, error)
	ListTransfers(ctx context.Context, accountID string) ([]domain.Transaction, error)
	ListPurchases(ctx context.Context, accountID string) ([]domain.Transaction, error)
	ListLoans(ctx context.Context, accountID string) ([]domain.Loan, error)
}

// BankingWriter creates records in the banking sandbox. Every method
// returns the ID of the created object.
type BankingWriter interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) (string, error)
	CreateAccount(ctx context.Context, customerID string, a *domain.Account) (string, error)
	CreateDeposit(ctx context.Context, accountID string, t *domain.Transaction) (string, error)
	CreateWithdrawal(ctx context.Context, accountID string, t *domain.Transaction) (string, error)
	CreateTransfer(ctx context.Context, accountID string, t *domain.Transaction) (string, error)
	CreatePurchase(ctx context.Context, accountID string, t *domain.Transaction) (string, error)
	CreateLoan(ctx context.Context, accountID string, l *domain.Loan) (string, error)
	CreateMerchant(ctx context.Context, m *domain.Merchant) (string, error)
}

// Banking is the full sandbox surface.
type Banking interface {
	BankingReader
	BankingWriter
}

// Completer produces a single chat completion from a prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// QuoteFetcher fetches the latest quote for a ticker.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, ticker string) (*domain.StockQuote, error)
}

// NewsFetcher fetches the top headlines for a topic.
type NewsFetcher interface {
	TopArticles(ctx context.Context, topic string, limit int) ([]domain.NewsArticle, error)
}

// EmailSender delivers one email and returns the provider message ID.
type EmailSender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (string, error)
}

// SubscriberStore persists newsletter subscribers, keyed by email.
// Implemented by the Supabase adapter.
type SubscriberStore interface {
	GetSubscriber(ctx context.Context, email string) (*domain.Subscriber, error)
	UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error)
	ListSubscribers(ctx context.Context, frequency domain.Frequency) ([]domain.Subscriber, error)
	SaveLastNewsletter(ctx context.Context, email string, last *domain.LastNewsletter) error
	SetFrequency(ctx context.Context, email string, frequency domain.Frequency) error
	Ping(ctx context.Context) error
}

package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
)

// --- Mocks shared by the service tests ---

type mockBank struct {
	mu sync.Mutex

	customer    *domain.Customer
	customerErr error
	accounts    []domain.Account
	accountsErr error
	txs         map[string][]domain.Transaction // key: resource + "/" + accountID
	loans       map[string][]domain.Loan
	listErr     map[string]error // key: resource

	createErr map[string]error // key: kind
	nextID    int
	created   map[string]int
	purchases []*domain.Transaction
	transfers []*domain.Transaction
}

func newMockBank() *mockBank {
	return &mockBank{
		txs:       map[string][]domain.Transaction{},
		loans:     map[string][]domain.Loan{},
		listErr:   map[string]error{},
		createErr: map[string]error{},
		created:   map[string]int{},
	}
}

func (m *mockBank) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	if m.customerErr != nil {
		return nil, m.customerErr
	}
	if m.customer == nil {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	return m.customer, nil
}

func (m *mockBank) ListAccounts(_ context.Context, _ string) ([]domain.Account, error) {
	return m.accounts, m.accountsErr
}

func (m *mockBank) list(resource, accountID string) ([]domain.Transaction, error) {
	if err := m.listErr[resource]; err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs[resource+"/"+accountID], nil
}

func (m *mockBank) ListDeposits(_ context.Context, id string) ([]domain.Transaction, error) {
	return m.list("deposits", id)
}

func (m *mockBank) ListWithdrawals(_ context.Context, id string) ([]domain.Transaction, error) {
	return m.list("withdrawals", id)
}

func (m *mockBank) ListTransfers(_ context.Context, id string) ([]domain.Transaction, error) {
	return m.list("transfers", id)
}

func (m *mockBank) ListPurchases(_ context.Context, id string) ([]domain.Transaction, error) {
	return m.list("purchases", id)
}

func (m *mockBank) ListLoans(_ context.Context, id string) ([]domain.Loan, error) {
	if err := m.listErr["loans"]; err != nil {
		return nil, err
	}
	return m.loans[id], nil
}

func (m *mockBank) create(kind string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[kind]; err != nil {
		return "", err
	}
	m.nextID++
	m.created[kind]++
	return fmt.Sprintf("%s-%d", kind, m.nextID), nil
}

func (m *mockBank) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created[kind]
}

func (m *mockBank) CreateCustomer(_ context.Context, _ *domain.Customer) (string, error) {
	return m.create("customer")
}

func (m *mockBank) CreateAccount(_ context.Context, _ string, _ *domain.Account) (string, error) {
	return m.create("account")
}

func (m *mockBank) CreateDeposit(_ context.Context, _ string, _ *domain.Transaction) (string, error) {
	return m.create("deposit")
}

func (m *mockBank) CreateWithdrawal(_ context.Context, _ string, _ *domain.Transaction) (string, error) {
	return m.create("withdrawal")
}

func (m *mockBank) CreateTransfer(_ context.Context, _ string, t *domain.Transaction) (string, error) {
	id, err := m.create("transfer")
	if err == nil {
		m.mu.Lock()
		m.transfers = append(m.transfers, t)
		m.mu.Unlock()
	}
	return id, err
}

func (m *mockBank) CreatePurchase(_ context.Context, _ string, t *domain.Transaction) (string, error) {
	id, err := m.create("purchase")
	if err == nil {
		m.mu.Lock()
		m.purchases = append(m.purchases, t)
		m.mu.Unlock()
	}
	return id, err
}

func (m *mockBank) CreateLoan(_ context.Context, _ string, _ *domain.Loan) (string, error) {
	return m.create("loan")
}

func (m *mockBank) CreateMerchant(_ context.Context, _ *domain.Merchant) (string, error) {
	return m.create("merchant")
}

type mockCompleter struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	prompts []string
}

func (m *mockCompleter) Complete(_ context.Context, _, prompt string, _ int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.text, m.err
}

type mockQuotes struct {
	mu     sync.Mutex
	quotes map[string]*domain.StockQuote
	err    error
	calls  int
}

func (m *mockQuotes) GetQuote(_ context.Context, ticker string) (*domain.StockQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	q, ok := m.quotes[ticker]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "quote", ID: ticker}
	}
	cp := *q
	return &cp, nil
}

type mockNews struct {
	mu       sync.Mutex
	articles []domain.NewsArticle
	err      error
	calls    int
}

func (m *mockNews) TopArticles(_ context.Context, _ string, limit int) ([]domain.NewsArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := append([]domain.NewsArticle(nil), m.articles...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockSender struct {
	mu      sync.Mutex
	sent    []*domain.EmailMessage
	failFor map[string]error
}

func (m *mockSender) Send(_ context.Context, msg *domain.EmailMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range msg.To {
		if err := m.failFor[to]; err != nil {
			return "", err
		}
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

type mockStore struct {
	mu      sync.Mutex
	subs    map[string]*domain.Subscriber
	getErr  error
	saveErr error
	last    map[string]*domain.LastNewsletter
}

func newMockStore(subs ...domain.Subscriber) *mockStore {
	s := &mockStore{subs: map[string]*domain.Subscriber{}, last: map[string]*domain.LastNewsletter{}}
	for i := range subs {
		sub := subs[i]
		s.subs[sub.Email] = &sub
	}
	return s
}

func (m *mockStore) GetSubscriber(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	sub, ok := m.subs[strings.ToLower(email)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "subscriber", ID: email}
	}
	return sub, nil
}

func (m *mockStore) UpsertSubscriber(_ context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.Email] = &cp
	return &cp, nil
}

func (m *mockStore) ListSubscribers(_ context.Context, f domain.Frequency) ([]domain.Subscriber, error) {
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

func (m *mockStore) SaveLastNewsletter(_ context.Context, email string, last *domain.LastNewsletter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.last[email] = last
	return nil
}

func (m *mockStore) SetFrequency(_ context.Context, email string, f domain.Frequency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[email]
	if !ok {
		return &domain.ErrNotFound{Resource: "subscriber", ID: email}
	}
	sub.Frequency = f
	return nil
}

func (m *mockStore) Ping(_ context.Context) error { return nil }

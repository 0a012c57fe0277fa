// Package nessie is the adapter for the Capital One "Nessie" banking sandbox.
// Reads map sandbox documents to domain records; writes return the ID of
// the created object.
package nessie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

var tracer = otel.Tracer("nessie")

const serviceName = "nessie"

// Client wraps HTTP calls to the Nessie REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a Nessie client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s?key=%s", c.baseURL, path, url.QueryEscape(c.apiKey))
}

// getJSON performs a GET through the breaker, retrying per cfg, and decodes
// the body into out. 404 is reported as *domain.ErrNotFound.
func (c *Client) getJSON(ctx context.Context, resource, id, path string, out any) error {
	_, err := resilience.Call(ctx, c.cb, c.cfg, true, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
		if err != nil {
			return struct{}{}, resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, err
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return struct{}{}, resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return struct{}{}, resilience.Permanent(fmt.Errorf("nessie GET %s returned %d: %s", path, resp.StatusCode, string(body)))
		case resp.StatusCode != http.StatusOK:
			return struct{}{}, fmt.Errorf("nessie GET %s returned %d", path, resp.StatusCode)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, resilience.Permanent(fmt.Errorf("decode %s: %w", resource, err))
		}
		return struct{}{}, nil
	})
	return wrap(err)
}

// postCreate sends a create request once (writes are never retried) and
// returns objectCreated._id.
func (c *Client) postCreate(ctx context.Context, resource, path string, payload any) (string, error) {
	id, err := resilience.Call(ctx, c.cb, c.cfg, false, func() (string, error) {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return "", resilience.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(jsonBody))
		if err != nil {
			return "", resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Warn("nessie: POST non-2xx",
				zap.String("resource", resource),
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)),
			)
			err := fmt.Errorf("nessie POST %s returned %d: %s", resource, resp.StatusCode, string(body))
			if resp.StatusCode < 500 {
				return "", resilience.Permanent(err)
			}
			return "", err
		}

		var created createResponse
		if err := json.Unmarshal(body, &created); err != nil {
			return "", resilience.Permanent(fmt.Errorf("decode %s create response: %w", resource, err))
		}
		if created.ObjectCreated.ID == "" {
			return "", resilience.Permanent(&domain.ErrMissingID{Resource: resource})
		}
		return created.ObjectCreated.ID, nil
	})
	if err != nil {
		return "", wrap(err)
	}
	return id, nil
}

// wrap reports upstream failures as *domain.ErrExternalService while
// leaving not-found and missing-ID errors for callers to match on.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *domain.ErrNotFound, *domain.ErrMissingID, *domain.ErrCircuitOpen:
		return err
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// ============================================================
// Reads
// ============================================================

// GetCustomer fetches one customer.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Nessie.GetCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var w customerDoc
	if err := c.getJSON(ctx, "customer", customerID, "customers/"+url.PathEscape(customerID), &w); err != nil {
		return nil, err
	}
	cust := w.toDomain()
	return &cust, nil
}

// ListAccounts lists the accounts of a customer.
func (c *Client) ListAccounts(ctx context.Context, customerID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Nessie.ListAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var docs []accountDoc
	if err := c.getJSON(ctx, "accounts", customerID, "customers/"+url.PathEscape(customerID)+"/accounts", &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(docs))
	for _, d := range docs {
		a := d.toDomain()
		if a.CustomerID == "" {
			a.CustomerID = customerID
		}
		out = append(out, a)
	}
	return out, nil
}

// ListDeposits lists deposits on an account.
func (c *Client) ListDeposits(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	return c.listTransactions(ctx, accountID, "deposits", domain.TxDeposit)
}

// ListWithdrawals lists withdrawals on an account.
func (c *Client) ListWithdrawals(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	return c.listTransactions(ctx, accountID, "withdrawals", domain.TxWithdrawal)
}

// ListTransfers lists transfers on an account.
func (c *Client) ListTransfers(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	return c.listTransactions(ctx, accountID, "transfers", domain.TxTransfer)
}

// ListPurchases lists purchases on an account.
func (c *Client) ListPurchases(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	return c.listTransactions(ctx, accountID, "purchases", domain.TxPurchase)
}

func (c *Client) listTransactions(ctx context.Context, accountID, resource, txType string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Nessie.List."+resource)
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var docs []transactionDoc
	if err := c.getJSON(ctx, resource, accountID, "accounts/"+url.PathEscape(accountID)+"/"+resource, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain(accountID, txType))
	}
	return out, nil
}

// ListLoans lists loans on an account.
func (c *Client) ListLoans(ctx context.Context, accountID string) ([]domain.Loan, error) {
	ctx, span := tracer.Start(ctx, "Nessie.ListLoans")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var docs []loanDoc
	if err := c.getJSON(ctx, "loans", accountID, "accounts/"+url.PathEscape(accountID)+"/loans", &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Loan, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain(accountID))
	}
	return out, nil
}

// ============================================================
// Writes
// ============================================================

// CreateCustomer registers a customer and returns its sandbox ID.
func (c *Client) CreateCustomer(ctx context.Context, cust *domain.Customer) (string, error) {
	ctx, span := tracer.Start(ctx, "Nessie.CreateCustomer")
	defer span.End()

	return c.postCreate(ctx, "customer", "customers", map[string]any{
		"first_name": cust.FirstName,
		"last_name":  cust.LastName,
		"address":    cust.Address,
	})
}

// CreateAccount opens an account for a customer.
func (c *Client) CreateAccount(ctx context.Context, customerID string, a *domain.Account) (string, error) {
	ctx, span := tracer.Start(ctx, "Nessie.CreateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	return c.postCreate(ctx, "account", "customers/"+url.PathEscape(customerID)+"/accounts", map[string]any{
		"type":           a.Type,
		"nickname":       a.Nickname,
		"rewards":        a.Rewards,
		"balance":        a.Balance,
		"account_number": a.AccountNumber,
	})
}

// CreateDeposit records a deposit.
func (c *Client) CreateDeposit(ctx context.Context, accountID string, t *domain.Transaction) (string, error) {
	return c.createTransaction(ctx, accountID, "deposits", t, "transaction_date")
}

// CreateWithdrawal records a withdrawal.
func (c *Client) CreateWithdrawal(ctx context.Context, accountID string, t *domain.Transaction) (string, error) {
	return c.createTransaction(ctx, accountID, "withdrawals", t, "transaction_date")
}

// CreateTransfer records a transfer to t.PayeeID.
func (c *Client) CreateTransfer(ctx context.Context, accountID string, t *domain.Transaction) (string, error) {
	return c.createTransaction(ctx, accountID, "transfers", t, "transaction_date")
}

// CreatePurchase records a purchase at t.MerchantID.
func (c *Client) CreatePurchase(ctx context.Context, accountID string, t *domain.Transaction) (string, error) {
	return c.createTransaction(ctx, accountID, "purchases", t, "purchase_date")
}

func (c *Client) createTransaction(ctx context.Context, accountID, resource string, t *domain.Transaction, dateField string) (string, error) {
	ctx, span := tracer.Start(ctx, "Nessie.Create."+resource)
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	payload := map[string]any{
		"medium":      "balance",
		"amount":      t.Amount,
		"description": t.Description,
		dateField:     t.Date,
	}
	if t.Status != "" {
		payload["status"] = t.Status
	}
	if t.MerchantID != "" {
		payload["merchant_id"] = t.MerchantID
	}
	if t.PayeeID != "" {
		payload["payee_id"] = t.PayeeID
	}
	return c.postCreate(ctx, strings.TrimSuffix(resource, "s"), "accounts/"+url.PathEscape(accountID)+"/"+resource, payload)
}

// CreateLoan opens a loan on an account.
func (c *Client) CreateLoan(ctx context.Context, accountID string, l *domain.Loan) (string, error) {
	ctx, span := tracer.Start(ctx, "Nessie.CreateLoan")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return c.postCreate(ctx, "loan", "accounts/"+url.PathEscape(accountID)+"/loans", map[string]any{
		"type":            l.Type,
		"status":          l.Status,
		"credit_score":    l.CreditScore,
		"monthly_payment": l.MonthlyPayment,
		"amount":          l.Amount,
		"description":     l.Description,
	})
}

// CreateMerchant registers a merchant.
func (c *Client) CreateMerchant(ctx context.Context, m *domain.Merchant) (string, error) {
	ctx, span := tracer.Start(ctx, "Nessie.CreateMerchant")
	defer span.End()

	return c.postCreate(ctx, "merchant", "merchants", map[string]any{
		"name":     m.Name,
		"category": m.Category,
		"address":  m.Address,
		"geocode":  map[string]float64{"lat": m.Lat, "lng": m.Lng},
	})
}

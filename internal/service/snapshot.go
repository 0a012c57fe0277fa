package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
)

// SnapshotLoader fetches everything a report needs from the banking
// sandbox. Per-resource failures become empty collections plus a warning;
// only an unknown customer is an error.
type SnapshotLoader struct {
	bank           port.BankingReader
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxConcurrency int
}

// NewSnapshotLoader creates a loader. maxConcurrency caps the per-account
// fetches in flight.
func NewSnapshotLoader(bank port.BankingReader, metrics *observability.Metrics, logger *zap.Logger, maxConcurrency int) *SnapshotLoader {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &SnapshotLoader{bank: bank, metrics: metrics, logger: logger, maxConcurrency: maxConcurrency}
}

type accountData struct {
	transactions []domain.Transaction
	loans        []domain.Loan
	warnings     []string
}

// Load returns the snapshot of customerID.
func (l *SnapshotLoader) Load(ctx context.Context, customerID string) (*domain.CustomerSnapshot, error) {
	ctx, span := tracer.Start(ctx, "SnapshotLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	snap := &domain.CustomerSnapshot{CustomerID: customerID}

	cust, err := l.bank.GetCustomer(ctx, customerID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, err
		}
		l.degrade(snap, customerID, "customer", err)
	} else {
		snap.Customer = cust
	}

	accounts, err := l.bank.ListAccounts(ctx, customerID)
	if err != nil {
		l.degrade(snap, customerID, "accounts", err)
		accounts = nil
	}
	snap.Accounts = accounts

	// one slot per account keeps the merged order deterministic
	perAccount := make([]accountData, len(accounts))
	g := new(errgroup.Group)
	g.SetLimit(l.maxConcurrency)
	for i, acct := range accounts {
		g.Go(func() error {
			perAccount[i] = l.loadAccount(ctx, customerID, acct.ID)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range perAccount {
		snap.Transactions = append(snap.Transactions, d.transactions...)
		snap.Loans = append(snap.Loans, d.loans...)
		snap.Warnings = append(snap.Warnings, d.warnings...)
	}
	span.SetAttributes(
		attribute.Int("snapshot.accounts", len(snap.Accounts)),
		attribute.Int("snapshot.transactions", len(snap.Transactions)),
		attribute.Int("snapshot.warnings", len(snap.Warnings)),
	)
	return snap, nil
}

func (l *SnapshotLoader) loadAccount(ctx context.Context, customerID, accountID string) accountData {
	var d accountData
	lists := []struct {
		resource string
		fetch    func(context.Context, string) ([]domain.Transaction, error)
	}{
		{"deposits", l.bank.ListDeposits},
		{"withdrawals", l.bank.ListWithdrawals},
		{"transfers", l.bank.ListTransfers},
		{"purchases", l.bank.ListPurchases},
	}
	for _, list := range lists {
		txs, err := list.fetch(ctx, accountID)
		if err != nil {
			d.warnings = append(d.warnings, l.warn(customerID, accountID, list.resource, err))
			continue
		}
		d.transactions = append(d.transactions, txs...)
	}

	loans, err := l.bank.ListLoans(ctx, accountID)
	if err != nil {
		d.warnings = append(d.warnings, l.warn(customerID, accountID, "loans", err))
	} else {
		d.loans = loans
	}
	return d
}

func (l *SnapshotLoader) degrade(snap *domain.CustomerSnapshot, customerID, resource string, err error) {
	snap.Warnings = append(snap.Warnings, l.warn(customerID, "", resource, err))
}

func (l *SnapshotLoader) warn(customerID, accountID, resource string, err error) string {
	l.logger.Warn("banking fetch failed, using empty collection",
		zap.String("customer_id", customerID),
		zap.String("account_id", accountID),
		zap.String("resource", resource),
		zap.Error(err),
	)
	l.metrics.IncrExternalError("nessie/" + resource)
	if accountID == "" {
		return fmt.Sprintf("%s unavailable", resource)
	}
	return fmt.Sprintf("%s unavailable for account %s", resource, accountID)
}

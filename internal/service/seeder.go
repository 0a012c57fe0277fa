package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
)

var (
	seedAccountTypes = []string{"Checking", "Savings", "Credit Card"}
	seedNicknames    = []string{
		"Primary", "Secondary", "Emergency Fund", "Vacation",
		"Home Savings", "Daily Expenses", "Travel", "Education",
	}
	seedStatuses        = []string{"pending", "completed", "cancelled"}
	depositDescriptions = []string{
		"Salary deposit", "Refund", "Transfer from external account", "Investment return", "Gift",
	}
	withdrawalDescriptions = []string{
		"ATM withdrawal", "Cash back", "Bill payment", "Transfer to external account", "Check withdrawal",
	}
	purchaseDescriptions = []string{
		"Grocery shopping", "Electronics", "Clothing", "Dining", "Entertainment", "Transportation", "Services",
	}
	transferDescriptions = []string{
		"Monthly transfer", "Debt payment", "Shared expense", "Family support", "Savings transfer",
	}
	loanDescriptions = []string{
		"Home renovation", "Car purchase", "Education expenses", "Debt consolidation", "Medical expenses",
	}
	merchantCategories = []string{
		"Food", "Retail", "Entertainment", "Healthcare", "Transportation", "Utilities", "Education",
	}
	merchantPrefixes = []string{"Blue", "North", "Summit", "Golden", "River", "Maple", "Harbor", "Pioneer", "Cedar", "Union"}
	merchantNouns    = []string{"Market", "Outfitters", "Kitchen", "Supply", "Goods", "Pharmacy", "Transit", "Studios", "Labs", "Depot"}
	merchantSuffixes = []string{"Inc", "LLC", "Co", "Group"}
	streetNames      = []string{"Main St", "Oak Ave", "Pine Rd", "Elm St", "Lake Dr", "Hill Blvd", "Park Ln", "Cherry Ct"}
	cities           = []string{"Springfield", "Riverside", "Fairview", "Franklin", "Greenville", "Bristol", "Clinton", "Madison"}
	stateCodes       = []string{"CA", "NY", "TX", "VA", "WA", "IL", "FL", "MA"}
)

const (
	seedMaxDaysBack = 90
	loanChance      = 0.25
)

// Seeder fills a sandbox customer with synthetic accounts and activity so
// the first newsletter has something to report.
type Seeder struct {
	bank    port.Banking
	limiter *resilience.Limiter
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeeder creates a seeder. Every sandbox call waits on a token bucket
// of ratePerSec. rnd may be nil.
func NewSeeder(bank port.Banking, ratePerSec float64, rnd *rand.Rand, metrics *observability.Metrics, logger *zap.Logger) *Seeder {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{
		bank:    bank,
		limiter: resilience.NewLimiter(ratePerSec),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		rnd:     rnd,
	}
}

// WithClock overrides the time source (tests).
func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

// Seed populates customerID. Existing accounts are reused; otherwise 2 to 5
// are opened. Item failures are counted, never returned. Only a cancelled
// context stops the seed early.
func (s *Seeder) Seed(ctx context.Context, customerID string) (*domain.SeedResult, error) {
	ctx, span := tracer.Start(ctx, "Seeder.Seed")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	res := &domain.SeedResult{}
	log := s.logger.With(zap.String("customer_id", customerID))

	accountIDs, err := s.existingAccounts(ctx, customerID)
	if err != nil {
		log.Warn("could not list existing accounts", zap.Error(err))
	}
	if len(accountIDs) == 0 {
		n := s.intn(2, 5)
		for i := 0; i < n; i++ {
			id, err := s.createAccount(ctx, customerID)
			if !s.record(ctx, log, res, "account", err) {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				continue
			}
			res.Accounts++
			accountIDs = append(accountIDs, id)
		}
	}

	for _, accountID := range accountIDs {
		siblings := make([]string, 0, len(accountIDs)-1)
		for _, other := range accountIDs {
			if other != accountID {
				siblings = append(siblings, other)
			}
		}
		s.populate(ctx, log.With(zap.String("account_id", accountID)), res, accountID, siblings)
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	log.Info("customer seeded",
		zap.Int("accounts", len(accountIDs)),
		zap.Int("purchases", res.Purchases),
		zap.Int("failures", res.Failures),
	)
	return res, nil
}

func (s *Seeder) existingAccounts(ctx context.Context, customerID string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	accounts, err := s.bank.ListAccounts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *Seeder) populate(ctx context.Context, log *zap.Logger, res *domain.SeedResult, accountID string, siblings []string) {
	for i, n := 0, s.intn(2, 4); i < n; i++ {
		_, err := s.call(ctx, func() (string, error) {
			return s.bank.CreateDeposit(ctx, accountID, s.transaction(depositDescriptions, 10, 10000, true))
		})
		if s.record(ctx, log, res, "deposit", err) {
			res.Deposits++
		}
	}

	if s.chance(loanChance) {
		_, err := s.call(ctx, func() (string, error) {
			return s.bank.CreateLoan(ctx, accountID, s.loan())
		})
		if s.record(ctx, log, res, "loan", err) {
			res.Loans++
		}
	}

	for i, n := 0, s.intn(5, 10); i < n; i++ {
		merchantID, err := s.call(ctx, func() (string, error) {
			return s.bank.CreateMerchant(ctx, s.merchant())
		})
		if !s.record(ctx, log, res, "merchant", err) {
			continue
		}
		res.Merchants++

		for j, m := 0, s.intn(3, 8); j < m; j++ {
			tx := s.transaction(purchaseDescriptions, 5, 1000, true)
			tx.MerchantID = merchantID
			_, err := s.call(ctx, func() (string, error) {
				return s.bank.CreatePurchase(ctx, accountID, tx)
			})
			if s.record(ctx, log, res, "purchase", err) {
				res.Purchases++
			}
		}
	}

	for i, n := 0, s.intn(2, 3); i < n; i++ {
		_, err := s.call(ctx, func() (string, error) {
			return s.bank.CreateWithdrawal(ctx, accountID, s.transaction(withdrawalDescriptions, 10, 1000, true))
		})
		if s.record(ctx, log, res, "withdrawal", err) {
			res.Withdrawals++
		}
	}

	if len(siblings) == 0 {
		return
	}
	for i, n := 0, s.intn(1, 3); i < n; i++ {
		// the sandbox only accepts pending transfers
		tx := s.transaction(transferDescriptions, 10, 1000, false)
		tx.Status = "pending"
		tx.PayeeID = s.pick(siblings)
		_, err := s.call(ctx, func() (string, error) {
			return s.bank.CreateTransfer(ctx, accountID, tx)
		})
		if s.record(ctx, log, res, "transfer", err) {
			res.Transfers++
		}
	}
}

// call waits for a token and runs fn.
func (s *Seeder) call(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fn()
}

// record counts the outcome of one create call and reports success.
func (s *Seeder) record(ctx context.Context, log *zap.Logger, res *domain.SeedResult, kind string, err error) bool {
	if err == nil {
		s.metrics.IncrSeeded(kind)
		return true
	}
	if ctx.Err() == nil {
		res.Failures++
		log.Warn("seed item failed", zap.String("kind", kind), zap.Error(err))
	}
	return false
}

func (s *Seeder) createAccount(ctx context.Context, customerID string) (string, error) {
	s.mu.Lock()
	acct := &domain.Account{
		Type:          seedAccountTypes[s.rnd.Intn(len(seedAccountTypes))],
		Nickname:      seedNicknames[s.rnd.Intn(len(seedNicknames))],
		Rewards:       s.rnd.Intn(10001),
		Balance:       float64(1000 + s.rnd.Intn(49001)),
		AccountNumber: s.digitsLocked(16),
	}
	s.mu.Unlock()
	return s.call(ctx, func() (string, error) {
		return s.bank.CreateAccount(ctx, customerID, acct)
	})
}

func (s *Seeder) transaction(descriptions []string, minAmount, maxAmount float64, randomStatus bool) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &domain.Transaction{
		Amount:      roundCents(minAmount + s.rnd.Float64()*(maxAmount-minAmount)),
		Description: descriptions[s.rnd.Intn(len(descriptions))],
		Date:        s.now().AddDate(0, 0, -(1 + s.rnd.Intn(seedMaxDaysBack))).Format("2006-01-02"),
	}
	if randomStatus {
		tx.Status = seedStatuses[s.rnd.Intn(len(seedStatuses))]
	}
	return tx
}

func (s *Seeder) loan() *domain.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &domain.Loan{
		Type:           "home",
		Status:         "pending",
		CreditScore:    300 + s.rnd.Intn(481),
		MonthlyPayment: float64(100 + s.rnd.Intn(1901)),
		Amount:         float64(1000 + s.rnd.Intn(49001)),
		Description:    loanDescriptions[s.rnd.Intn(len(loanDescriptions))],
	}
}

func (s *Seeder) merchant() *domain.Merchant {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%s %s %s",
		merchantPrefixes[s.rnd.Intn(len(merchantPrefixes))],
		merchantNouns[s.rnd.Intn(len(merchantNouns))],
		merchantSuffixes[s.rnd.Intn(len(merchantSuffixes))],
	)
	return &domain.Merchant{
		Name:     name,
		Category: merchantCategories[s.rnd.Intn(len(merchantCategories))],
		Address: domain.Address{
			StreetNumber: fmt.Sprintf("%d", 1+s.rnd.Intn(9999)),
			StreetName:   streetNames[s.rnd.Intn(len(streetNames))],
			City:         cities[s.rnd.Intn(len(cities))],
			State:        stateCodes[s.rnd.Intn(len(stateCodes))],
			Zip:          s.digitsLocked(5),
		},
		Lat: roundCents(-90 + s.rnd.Float64()*180),
		Lng: roundCents(-180 + s.rnd.Float64()*360),
	}
}

// intn returns a uniform int in [lo, hi].
func (s *Seeder) intn(lo, hi int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rnd.Intn(hi-lo+1)
}

func (s *Seeder) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() < p
}

func (s *Seeder) pick(values []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return values[s.rnd.Intn(len(values))]
}

// digitsLocked must be called with s.mu held.
func (s *Seeder) digitsLocked(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + s.rnd.Intn(10)))
	}
	return b.String()
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

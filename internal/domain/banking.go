package domain

import (
	"strings"
	"time"
)

// ============================================================
// Banking sandbox records (read-only snapshots)
// ============================================================

// Transaction types as exposed by the banking sandbox sub-resources.
const (
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
	TxPurchase   = "purchase"
	TxTransfer   = "transfer"
)

// LoanCompleted is the only loan status that no longer counts as debt.
const LoanCompleted = "completed"

// Address is a postal address as accepted by the banking sandbox.
type Address struct {
	StreetNumber string `json:"street_number"`
	StreetName   string `json:"street_name"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

// Customer is a banking sandbox customer.
type Customer struct {
	ID        string  `json:"customer_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Address   Address `json:"address"`
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Account is a customer bank account.
type Account struct {
	ID            string  `json:"account_id"`
	CustomerID    string  `json:"customer_id"`
	Type          string  `json:"type"`
	Nickname      string  `json:"nickname"`
	Rewards       int     `json:"rewards"`
	Balance       float64 `json:"balance"`
	AccountNumber string  `json:"account_number"`
}

// Transaction is a deposit, withdrawal, purchase or transfer on an account.
// Date is kept as the raw string returned upstream; malformed dates are
// dropped where they are used.
type Transaction struct {
	ID          string  `json:"transaction_id"`
	AccountID   string  `json:"account_id"`
	Type        string  `json:"transaction_type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"transaction_date"`
	Status      string  `json:"status"`
	MerchantID  string  `json:"merchant_id,omitempty"`
	PayeeID     string  `json:"payee_id,omitempty"`
}

var transactionDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParsedDate parses the raw transaction date. ok is false for malformed dates.
func (t *Transaction) ParsedDate() (time.Time, bool) {
	raw := strings.TrimSpace(t.Date)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range transactionDateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Loan is a loan attached to an account.
type Loan struct {
	ID             string  `json:"loan_id"`
	AccountID      string  `json:"account_id"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	CreditScore    int     `json:"credit_score"`
	MonthlyPayment float64 `json:"monthly_payment"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"`
	CreationDate   string  `json:"creation_date"`
}

// Merchant is a purchase counterparty created by the seeder.
type Merchant struct {
	ID       string  `json:"merchant_id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Address  Address `json:"address"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// CustomerSnapshot is everything fetched for one report request.
// Warnings lists the resources that could not be fetched and were
// replaced by empty collections.
type CustomerSnapshot struct {
	CustomerID   string
	Customer     *Customer
	Accounts     []Account
	Transactions []Transaction
	Loans        []Loan
	Warnings     []string
}

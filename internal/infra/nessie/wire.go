package nessie

import "github.com/boddenberg/penny-newsletter-go/internal/domain"

// Sandbox documents as returned by the API. Only the fields the service
// reads are declared.

type createResponse struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	ObjectCreated struct {
		ID string `json:"_id"`
	} `json:"objectCreated"`
}

type customerDoc struct {
	ID        string         `json:"_id"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Address   domain.Address `json:"address"`
}

func (d customerDoc) toDomain() domain.Customer {
	return domain.Customer{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Address:   d.Address,
	}
}

type accountDoc struct {
	ID            string  `json:"_id"`
	CustomerID    string  `json:"customer_id"`
	Type          string  `json:"type"`
	Nickname      string  `json:"nickname"`
	Rewards       int     `json:"rewards"`
	Balance       float64 `json:"balance"`
	AccountNumber string  `json:"account_number"`
}

func (d accountDoc) toDomain() domain.Account {
	return domain.Account{
		ID:            d.ID,
		CustomerID:    d.CustomerID,
		Type:          d.Type,
		Nickname:      d.Nickname,
		Rewards:       d.Rewards,
		Balance:       d.Balance,
		AccountNumber: d.AccountNumber,
	}
}

// transactionDoc covers deposits, withdrawals, transfers and purchases.
// Purchases carry purchase_date instead of transaction_date.
type transactionDoc struct {
	ID              string  `json:"_id"`
	Type            string  `json:"type"`
	TransactionDate string  `json:"transaction_date"`
	PurchaseDate    string  `json:"purchase_date"`
	Status          string  `json:"status"`
	Medium          string  `json:"medium"`
	PayerID         string  `json:"payer_id"`
	PayeeID         string  `json:"payee_id"`
	MerchantID      string  `json:"merchant_id"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
}

func (d transactionDoc) toDomain(accountID, txType string) domain.Transaction {
	date := d.TransactionDate
	if date == "" {
		date = d.PurchaseDate
	}
	return domain.Transaction{
		ID:          d.ID,
		AccountID:   accountID,
		Type:        txType,
		Amount:      d.Amount,
		Description: d.Description,
		Date:        date,
		Status:      d.Status,
		MerchantID:  d.MerchantID,
		PayeeID:     d.PayeeID,
	}
}

type loanDoc struct {
	ID             string  `json:"_id"`
	AccountID      string  `json:"account_id"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	CreditScore    int     `json:"credit_score"`
	MonthlyPayment float64 `json:"monthly_payment"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"`
	CreationDate   string  `json:"creation_date"`
}

func (d loanDoc) toDomain(accountID string) domain.Loan {
	if d.AccountID != "" {
		accountID = d.AccountID
	}
	return domain.Loan{
		ID:             d.ID,
		AccountID:      accountID,
		Type:           d.Type,
		Status:         d.Status,
		CreditScore:    d.CreditScore,
		MonthlyPayment: d.MonthlyPayment,
		Amount:         d.Amount,
		Description:    d.Description,
		CreationDate:   d.CreationDate,
	}
}

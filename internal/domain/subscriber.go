package domain

import "fmt"

// ============================================================
// Subscribers (document store, one record per email)
// ============================================================

// Frequency is a newsletter delivery tier.
type Frequency string

const (
	FrequencyWeekly       Frequency = "weekly"
	FrequencyMonthly      Frequency = "monthly"
	FrequencyUnsubscribed Frequency = "unsubscribed"
)

// ParseFrequency accepts the two deliverable tiers.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyWeekly, FrequencyMonthly:
		return Frequency(s), nil
	}
	return "", &ErrValidation{Field: "frequency", Message: fmt.Sprintf("must be weekly or monthly, got %q", s)}
}

// DateRange returns the report window string for the tier.
func (f Frequency) DateRange() string {
	if f == FrequencyMonthly {
		return "30d"
	}
	return "7d"
}

// LastNewsletter is the audit copy of the last report that was sent.
type LastNewsletter struct {
	Data      *Report `json:"data"`
	Date      string  `json:"date"`
	DateRange string  `json:"date_range"`
}

// Subscriber is the persisted registration record.
type Subscriber struct {
	CustomerID         string          `json:"customer_id"`
	Email              string          `json:"email"`
	Frequency          Frequency       `json:"frequency"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	Address            Address         `json:"address"`
	LastNewsletterData *LastNewsletter `json:"last_newsletter_data,omitempty"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Address   Address `json:"address"`
	Email     string  `json:"email"`
	Frequency string  `json:"frequency"`
}

// SeedResult counts the synthetic records created for a customer.
type SeedResult struct {
	Accounts    int `json:"accounts"`
	Deposits    int `json:"deposits"`
	Withdrawals int `json:"withdrawals"`
	Purchases   int `json:"purchases"`
	Transfers   int `json:"transfers"`
	Loans       int `json:"loans"`
	Merchants   int `json:"merchants"`
	Failures    int `json:"failures"`
}

// RegisterResponse is returned by POST /register.
type RegisterResponse struct {
	Status         string      `json:"status"` // created, existing
	Subscriber     *Subscriber `json:"subscriber"`
	Seed           *SeedResult `json:"seed,omitempty"`
	NewsletterSent bool        `json:"newsletter_sent"`
	Warnings       []string    `json:"warnings,omitempty"`
}

// EmailMessage is one outgoing email.
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// BatchError records one failed item of a batch send.
type BatchError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BatchResult summarises a cron batch run.
type BatchResult struct {
	RunID     string       `json:"run_id"`
	Frequency Frequency    `json:"frequency"`
	Total     int          `json:"total"`
	Sent      int          `json:"sent"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
)

const (
	RegistrationCreated  = "created"
	RegistrationExisting = "existing"
)

// RegistrationService signs new readers up: sandbox customer, subscriber
// record, synthetic data and the first newsletter.
type RegistrationService struct {
	bank        port.BankingWriter
	store       port.SubscriberStore
	seeder      *Seeder
	newsletters *NewsletterService
	logger      *zap.Logger
}

// NewRegistrationService creates the service. seeder and newsletters may be
// nil to skip those steps.
func NewRegistrationService(
	bank port.BankingWriter,
	store port.SubscriberStore,
	seeder *Seeder,
	newsletters *NewsletterService,
	logger *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		bank:        bank,
		store:       store,
		seeder:      seeder,
		newsletters: newsletters,
		logger:      logger,
	}
}

// Register signs up req. An email that is already registered returns the
// stored subscriber untouched.
func (s *RegistrationService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	ctx, span := tracer.Start(ctx, "RegistrationService.Register")
	defer span.End()

	freq, err := validateRegistration(req)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, &domain.ErrUnavailable{Component: "subscriber store"}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	span.SetAttributes(attribute.String("subscriber.email", email))

	existing, err := s.store.GetSubscriber(ctx, email)
	if err == nil {
		s.logger.Info("subscriber already registered", zap.String("email", email))
		return &domain.RegisterResponse{Status: RegistrationExisting, Subscriber: existing}, nil
	}
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	customerID, err := s.bank.CreateCustomer(ctx, &domain.Customer{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Address:   req.Address,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	sub, err := s.store.UpsertSubscriber(ctx, &domain.Subscriber{
		CustomerID: customerID,
		Email:      email,
		Frequency:  freq,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Address:    req.Address,
	})
	if err != nil {
		return nil, fmt.Errorf("save subscriber: %w", err)
	}

	log := s.logger.With(zap.String("email", email), zap.String("customer_id", customerID))
	log.Info("subscriber registered", zap.String("frequency", string(freq)))

	resp := &domain.RegisterResponse{Status: RegistrationCreated, Subscriber: sub}

	if s.seeder != nil {
		seed, err := s.seeder.Seed(ctx, customerID)
		resp.Seed = seed
		if err != nil {
			log.Warn("seeding failed", zap.Error(err))
			resp.Warnings = append(resp.Warnings, "seeding incomplete: "+err.Error())
		} else if seed.Failures > 0 {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%d synthetic records could not be created", seed.Failures))
		}
	}

	if s.newsletters != nil {
		if err := s.newsletters.SendToSubscriber(ctx, sub); err != nil {
			log.Warn("welcome newsletter failed", zap.Error(err))
			resp.Warnings = append(resp.Warnings, "first newsletter not sent: "+err.Error())
		} else {
			resp.NewsletterSent = true
		}
	}
	return resp, nil
}

func validateRegistration(req *domain.RegisterRequest) (domain.Frequency, error) {
	if req == nil {
		return "", &domain.ErrValidation{Field: "body", Message: "request body is required"}
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return "", &domain.ErrValidation{Field: "first_name", Message: "first name is required"}
	}
	if strings.TrimSpace(req.LastName) == "" {
		return "", &domain.ErrValidation{Field: "last_name", Message: "last name is required"}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return "", &domain.ErrValidation{Field: "email", Message: "email is required"}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", &domain.ErrValidation{Field: "email", Message: "email is invalid"}
	}
	freq, err := domain.ParseFrequency(strings.ToLower(strings.TrimSpace(req.Frequency)))
	if err != nil {
		return "", err
	}
	a := req.Address
	if strings.TrimSpace(a.StreetNumber) == "" || strings.TrimSpace(a.StreetName) == "" ||
		strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.State) == "" || strings.TrimSpace(a.Zip) == "" {
		return "", &domain.ErrValidation{Field: "address", Message: "street_number, street_name, city, state and zip are required"}
	}
	return freq, nil
}

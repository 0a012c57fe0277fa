package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
	"github.com/boddenberg/penny-newsletter-go/internal/render"
)

const (
	statusSent   = "sent"
	statusFailed = "failed"
)

// NewsletterService renders and delivers newsletters.
type NewsletterService struct {
	reports     *ReportService
	store       port.SubscriberStore
	sender      port.EmailSender
	unsubscribe *UnsubscribeService
	from        string
	concurrency int
	limiter     *resilience.Limiter
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewsletterConfig holds the delivery settings.
type NewsletterConfig struct {
	From        string
	Concurrency int
	RatePerSec  float64
}

// NewNewsletterService creates the delivery service. store may be nil, in
// which case batches and audit copies are unavailable.
func NewNewsletterService(
	reports *ReportService,
	store port.SubscriberStore,
	sender port.EmailSender,
	unsubscribe *UnsubscribeService,
	cfg NewsletterConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *NewsletterService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &NewsletterService{
		reports:     reports,
		store:       store,
		sender:      sender,
		unsubscribe: unsubscribe,
		from:        cfg.From,
		concurrency: cfg.Concurrency,
		limiter:     resilience.NewLimiter(cfg.RatePerSec),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *NewsletterService) WithClock(now func() time.Time) *NewsletterService {
	s.now = now
	return s
}

// Preview renders the newsletter of customerID without sending it.
func (s *NewsletterService) Preview(ctx context.Context, customerID string, window *domain.Window) (string, error) {
	ctx, span := tracer.Start(ctx, "NewsletterService.Preview")
	defer span.End()

	report, err := s.reports.Build(ctx, customerID, window)
	if err != nil {
		return "", err
	}
	return render.Render(report, render.Options{Date: s.now()})
}

// SendToSubscriber builds, renders and sends the newsletter of sub, then
// stores the audit copy on the subscriber record.
func (s *NewsletterService) SendToSubscriber(ctx context.Context, sub *domain.Subscriber) (err error) {
	ctx, span := tracer.Start(ctx, "NewsletterService.SendToSubscriber")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", sub.CustomerID))

	defer func() {
		if err != nil {
			s.metrics.IncrNewsletter(statusFailed)
			return
		}
		s.metrics.IncrNewsletter(statusSent)
	}()

	if sub.Email == "" {
		return &domain.ErrValidation{Field: "email", Message: "subscriber has no email"}
	}
	if sub.CustomerID == "" {
		return &domain.ErrValidation{Field: "customer_id", Message: "subscriber has no customer id"}
	}

	dateRange := sub.Frequency.DateRange()
	window, err := ParseWindow(dateRange)
	if err != nil {
		return err
	}

	report, err := s.reports.Build(ctx, sub.CustomerID, window)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	now := s.now()
	opts := render.Options{Date: now}
	if s.unsubscribe != nil {
		link, linkErr := s.unsubscribe.Link(sub.Email)
		if linkErr != nil {
			s.logger.Warn("unsubscribe link unavailable", zap.String("email", sub.Email), zap.Error(linkErr))
		}
		opts.UnsubscribeURL = link
	}

	body, err := render.Render(report, opts)
	if err != nil {
		return fmt.Errorf("render newsletter: %w", err)
	}

	if s.sender == nil {
		return &domain.ErrUnavailable{Component: "email"}
	}
	messageID, err := s.sender.Send(ctx, &domain.EmailMessage{
		From:    s.from,
		To:      []string{sub.Email},
		Subject: render.Subject(report, now),
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("newsletter sent",
		zap.String("email", sub.Email),
		zap.String("customer_id", sub.CustomerID),
		zap.String("message_id", messageID),
	)

	// the email is out; a failed audit write is only logged
	if s.store != nil {
		last := &domain.LastNewsletter{Data: report, Date: now.UTC().Format(time.RFC3339), DateRange: dateRange}
		if saveErr := s.store.SaveLastNewsletter(ctx, sub.Email, last); saveErr != nil {
			s.logger.Warn("failed to store last newsletter",
				zap.String("email", sub.Email),
				zap.Error(saveErr),
			)
		}
	}
	return nil
}

// SendBatch delivers the newsletter to every subscriber of frequency.
// Failures are isolated per subscriber and reported in the result.
func (s *NewsletterService) SendBatch(ctx context.Context, frequency domain.Frequency) (*domain.BatchResult, error) {
	ctx, span := tracer.Start(ctx, "NewsletterService.SendBatch")
	defer span.End()
	span.SetAttributes(attribute.String("frequency", string(frequency)))

	if _, err := domain.ParseFrequency(string(frequency)); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, &domain.ErrUnavailable{Component: "subscriber store"}
	}

	subs, err := s.store.ListSubscribers(ctx, frequency)
	if err != nil {
		return nil, fmt.Errorf("list %s subscribers: %w", frequency, err)
	}

	result := &domain.BatchResult{
		RunID:     uuid.New().String(),
		Frequency: frequency,
		Total:     len(subs),
		Errors:    []domain.BatchError{},
	}
	log := s.logger.With(zap.String("run_id", result.RunID), zap.String("frequency", string(frequency)))
	log.Info("newsletter batch started", zap.Int("total", result.Total))

	var mu sync.Mutex
	record := func(email string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			result.Sent++
			return
		}
		result.Failed++
		result.Errors = append(result.Errors, domain.BatchError{Email: email, Error: err.Error()})
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				record(sub.Email, err)
				return nil
			}
			err := s.SendToSubscriber(ctx, &sub)
			if err != nil {
				log.Error("newsletter delivery failed", zap.String("email", sub.Email), zap.Error(err))
			}
			record(sub.Email, err)
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Email < result.Errors[j].Email })

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("newsletter batch cancelled")
	}
	log.Info("newsletter batch finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

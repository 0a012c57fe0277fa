package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
)

const (
	unsubscribePurpose = "unsubscribe"
	tokenIssuer        = "penny"
)

// UnsubscribeClaims are the claims of an unsubscribe link token.
type UnsubscribeClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// UnsubscribeService signs and redeems the tokens carried by the
// unsubscribe link of every newsletter.
type UnsubscribeService struct {
	store   port.SubscriberStore
	secret  []byte
	ttl     time.Duration
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewUnsubscribeService creates the service. store may be nil when only
// links are needed.
func NewUnsubscribeService(store port.SubscriberStore, secret string, ttl time.Duration, baseURL string, logger *zap.Logger) *UnsubscribeService {
	return &UnsubscribeService{
		store:   store,
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *UnsubscribeService) WithClock(now func() time.Time) *UnsubscribeService {
	s.now = now
	return s
}

// Token signs an HS256 token for email.
func (s *UnsubscribeService) Token(email string) (string, error) {
	now := s.now()
	claims := UnsubscribeClaims{
		Purpose: unsubscribePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(strings.TrimSpace(email)),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Link returns the absolute unsubscribe URL for email.
func (s *UnsubscribeService) Link(email string) (string, error) {
	token, err := s.Token(email)
	if err != nil {
		return "", fmt.Errorf("sign unsubscribe token: %w", err)
	}
	return fmt.Sprintf("%s/unsubscribe?token=%s", s.baseURL, url.QueryEscape(token)), nil
}

// Validate checks the token and returns the email it was issued for.
func (s *UnsubscribeService) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UnsubscribeClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired unsubscribe link"}
	}

	claims, ok := token.Claims.(*UnsubscribeClaims)
	if !ok || !token.Valid || claims.Purpose != unsubscribePurpose || claims.Subject == "" {
		return "", &domain.ErrUnauthorized{Message: "invalid unsubscribe link"}
	}
	return claims.Subject, nil
}

// Unsubscribe redeems tokenString and moves the subscriber to the
// unsubscribed tier. Redeeming twice is harmless.
func (s *UnsubscribeService) Unsubscribe(ctx context.Context, tokenString string) (string, error) {
	ctx, span := tracer.Start(ctx, "UnsubscribeService.Unsubscribe")
	defer span.End()

	email, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}
	if s.store == nil {
		return "", &domain.ErrUnavailable{Component: "subscriber store"}
	}
	if err := s.store.SetFrequency(ctx, email, domain.FrequencyUnsubscribed); err != nil {
		return "", fmt.Errorf("unsubscribe %s: %w", email, err)
	}

	s.logger.Info("subscriber unsubscribed", zap.String("email", email))
	return email, nil
}

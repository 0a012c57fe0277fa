package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/service"
)

type reportRequest struct {
	DateRange string `json:"date_range"`
}

// ============================================================
// POST /get_all_user_data/{customer_id}
// ============================================================

func reportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /get_all_user_data/{customer_id}")
		defer span.End()

		customerID := chi.URLParam(r, "customer_id")
		span.SetAttributes(attribute.String("customer.id", customerID))

		var req reportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.DateRange == "" {
			req.DateRange = r.URL.Query().Get("date_range")
		}

		window, err := service.ParseWindow(req.DateRange)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Build(ctx, customerID, window)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// ============================================================
// GET /newsletter/{customer_id}/preview
// ============================================================

func previewHandler(svc *service.NewsletterService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /newsletter/{customer_id}/preview")
		defer span.End()

		customerID := chi.URLParam(r, "customer_id")
		span.SetAttributes(attribute.String("customer.id", customerID))

		window, err := service.ParseWindow(r.URL.Query().Get("date_range"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		body, err := svc.Preview(ctx, customerID, window)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeHTML(w, http.StatusOK, body)
	}
}

// ============================================================
// POST /register
// ============================================================

func registerHandler(svc *service.RegistrationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /register")
		defer span.End()

		var req domain.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Register(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusCreated
		if resp.Status == service.RegistrationExisting {
			status = http.StatusOK
		}
		writeJSON(w, status, resp)
	}
}

// ============================================================
// GET /cron/send_{weekly,monthly}_newsletters
// ============================================================

func cronHandler(svc *service.NewsletterService, frequency domain.Frequency, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /cron/send_"+string(frequency)+"_newsletters")
		defer span.End()

		result, err := svc.SendBatch(ctx, frequency)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("batch.sent", result.Sent),
			attribute.Int("batch.failed", result.Failed),
		)
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// GET /unsubscribe?token=
// ============================================================

const unsubscribedPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Penny - Unsubscribed</title></head>
<body style="font-family: Arial, sans-serif; background-color: #121212; color: #f9f9f9; text-align: center; padding: 60px;">
<h1 style="color: #ffd700;">You have been unsubscribed</h1>
<p>%s will no longer receive the Penny newsletter.</p>
</body>
</html>`

func unsubscribeHandler(svc *service.UnsubscribeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /unsubscribe")
		defer span.End()

		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusBadRequest, "token is required")
			return
		}

		email, err := svc.Unsubscribe(ctx, token)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeHTML(w, http.StatusOK, fmt.Sprintf(unsubscribedPage, html.EscapeString(email)))
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/leadpulse/leadpulse-backend/api/responses"
	"github.com/leadpulse/leadpulse-backend/internal/billing"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

// RenewalRunner drives the batch renewal pass for the internal trigger endpoint.
type RenewalRunner interface {
	RunRenewalPass(ctx context.Context, batchSize int) (*billing.PassResult, error)
}

// RetryRunner drives the payment retry pass for the internal trigger endpoint.
type RetryRunner interface {
	RunRetryPass(ctx context.Context, batchSize int) (*billing.PassResult, error)
}

// TriggerRenewals runs one renewal pass over due subscriptions.
func TriggerRenewals(svc RenewalRunner, batchSize int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		result, err := svc.RunRenewalPass(r.Context(), batchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TriggerRetries runs one retry pass over due payment retry attempts.
func TriggerRetries(svc RetryRunner, batchSize int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retry service unavailable"))
			return
		}

		result, err := svc.RunRetryPass(r.Context(), batchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/api/responses"
	"github.com/leadpulse/leadpulse-backend/api/validators"
	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

// BillingService is the subscription surface the public billing API uses.
type BillingService interface {
	ListPlans(ctx context.Context) ([]models.BillingPlan, error)
	StartSubscription(ctx context.Context, input billing.StartSubscriptionInput) (*models.Subscription, error)
	TopUp(ctx context.Context, input billing.TopUpInput) (*models.LedgerEntry, error)
	CancelSubscription(ctx context.Context, subscriptionID uuid.UUID, cause string) error
}

// ListPlans returns the purchasable plan catalog.
func ListPlans(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		plans, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plans)
	}
}

type startSubscriptionRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Tier   string    `json:"tier" validate:"required"`
}

// StartSubscription opens a trial subscription on a plan tier.
func StartSubscription(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var req startSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tier, err := enums.ParsePlanTier(req.Tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan tier"))
			return
		}

		subscription, err := svc.StartSubscription(r.Context(), billing.StartSubscriptionInput{
			UserID: req.UserID,
			Tier:   tier,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, subscription)
	}
}

type topUpRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	Category    string    `json:"category" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,min=1"`
	ReferenceID string    `json:"reference_id" validate:"required,max=255"`
}

// TopUp grants purchased credits outside the monthly cycle.
func TopUp(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var req topUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseCreditCategory(req.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		entry, err := svc.TopUp(r.Context(), billing.TopUpInput{
			UserID:      req.UserID,
			Category:    category,
			Amount:      req.Amount,
			ReferenceID: req.ReferenceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// CancelSubscription cancels a subscription at the user's request.
func CancelSubscription(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}
		if err := svc.CancelSubscription(r.Context(), subscriptionID, "user requested cancellation"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

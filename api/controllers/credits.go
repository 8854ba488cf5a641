package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/api/responses"
	"github.com/leadpulse/leadpulse-backend/api/validators"
	"github.com/leadpulse/leadpulse-backend/internal/balances"
	"github.com/leadpulse/leadpulse-backend/internal/holds"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

// HoldService is the hold lifecycle surface the credits API depends on.
type HoldService interface {
	Hold(ctx context.Context, input holds.HoldInput) (*models.CreditHold, error)
	Convert(ctx context.Context, input holds.ConvertInput) (*holds.ConvertResult, error)
	Release(ctx context.Context, holdID uuid.UUID, reason *string) (int64, error)
	Find(ctx context.Context, holdID uuid.UUID) (*models.CreditHold, error)
}

// BalanceService reads composed per-category balances.
type BalanceService interface {
	Balances(ctx context.Context, userID uuid.UUID) (map[enums.CreditCategory]balances.CategoryBalance, error)
}

// LedgerReader exposes the transaction history.
type LedgerReader interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)
}

type createHoldRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	Category    string    `json:"category" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,min=1"`
	ReferenceID string    `json:"reference_id" validate:"required,max=255"`
	TTLSeconds  int       `json:"ttl_seconds" validate:"omitempty,min=1"`
}

// CreateHold reserves credits against a user's available balance.
func CreateHold(svc HoldService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		var req createHoldRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseCreditCategory(req.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		hold, err := svc.Hold(r.Context(), holds.HoldInput{
			UserID:      req.UserID,
			Category:    category,
			Amount:      req.Amount,
			ReferenceID: req.ReferenceID,
			TTL:         time.Duration(req.TTLSeconds) * time.Second,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, hold)
	}
}

type convertHoldRequest struct {
	ActualAmount int64   `json:"actual_amount" validate:"required,min=1"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
}

// ConvertHold resolves a hold into a permanent debit for the actual amount
// consumed, refunding any unused remainder.
func ConvertHold(svc HoldService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hold id"))
			return
		}
		var req convertHoldRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Convert(r.Context(), holds.ConvertInput{
			HoldID:       holdID,
			ActualAmount: req.ActualAmount,
			Description:  req.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type releaseHoldRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// ReleaseHold returns a hold's credits to availability without charging.
func ReleaseHold(svc HoldService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hold id"))
			return
		}
		var req releaseHoldRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		released, err := svc.Release(r.Context(), holdID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"credits_released": released})
	}
}

// GetHold returns a single hold with its current status.
func GetHold(svc HoldService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hold id"))
			return
		}
		hold, err := svc.Find(r.Context(), holdID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, hold)
	}
}

// GetBalance reports total, held, and available credits per category.
func GetBalance(svc BalanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		balanceByCategory, err := svc.Balances(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceByCategory)
	}
}

// LedgerHistory lists a user's most recent ledger entries.
func LedgerHistory(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.History(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/api/responses"
	"github.com/leadpulse/leadpulse-backend/api/validators"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

// AuditReader exposes the audit trail read path.
type AuditReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error)
}

// AuditHistory returns the newest audit entries for a user.
func AuditHistory(svc AuditReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
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

		entries, err := svc.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

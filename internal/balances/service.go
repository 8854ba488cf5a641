package balances

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type ledgerReader interface {
	Balance(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error)
}

type holdReader interface {
	HeldAmount(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error)
}

// CategoryBalance breaks one credit category into its three views.
type CategoryBalance struct {
	Total     int64 `json:"total"`
	Held      int64 `json:"held"`
	Available int64 `json:"available"`
}

// ServiceParams groups dependencies for the balance service.
type ServiceParams struct {
	Logger *logger.Logger
	Ledger ledgerReader
	Holds  holdReader
}

// Service is a read-only composition of the ledger and hold stores.
type Service struct {
	logg   *logger.Logger
	ledger ledgerReader
	holds  holdReader
}

// NewService builds a balance service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("hold reader required")
	}
	return &Service{logg: params.Logger, ledger: params.Ledger, holds: params.Holds}, nil
}

// Balances reports total, held, and available per credit category. A negative
// total or held exceeding total means reservation accounting is broken
// upstream; it is surfaced as an internal error rather than papered over.
func (s *Service) Balances(ctx context.Context, userID uuid.UUID) (map[enums.CreditCategory]CategoryBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	result := make(map[enums.CreditCategory]CategoryBalance, len(enums.AllCreditCategories()))
	for _, category := range enums.AllCreditCategories() {
		balance, err := s.Balance(ctx, userID, category)
		if err != nil {
			return nil, err
		}
		result[category] = balance
	}
	return result, nil
}

// Balance reports one category's balance views.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (CategoryBalance, error) {
	if userID == uuid.Nil {
		return CategoryBalance{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !category.IsValid() {
		return CategoryBalance{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit category %q", category))
	}

	total, err := s.ledger.Balance(ctx, userID, category)
	if err != nil {
		return CategoryBalance{}, err
	}
	held, err := s.holds.HeldAmount(ctx, userID, category)
	if err != nil {
		return CategoryBalance{}, err
	}

	if total < 0 || held > total {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":  userID.String(),
			"category": string(category),
			"total":    total,
			"held":     held,
		})
		s.logg.Error(logCtx, "balance invariant violated", nil)
		return CategoryBalance{}, pkgerrors.New(pkgerrors.CodeInternal, "balance invariant violated").WithDetails(map[string]int64{
			"total": total,
			"held":  held,
		})
	}

	return CategoryBalance{
		Total:     total,
		Held:      held,
		Available: total - held,
	}, nil
}

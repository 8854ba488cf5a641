package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AppendInput captures the immutable data a ledger entry requires.
type AppendInput struct {
	UserID      uuid.UUID            `json:"user_id"`
	Category    enums.CreditCategory `json:"category"`
	Amount      int64                `json:"amount"`
	Source      enums.LedgerSource   `json:"source"`
	ReferenceID *string              `json:"reference_id,omitempty"`
	HoldID      *uuid.UUID           `json:"hold_id,omitempty"`
	Description *string              `json:"description,omitempty"`
}

// ReconcileResult compares the denormalized balance cache against a full
// resummation of the ledger.
type ReconcileResult struct {
	UserID            uuid.UUID            `json:"user_id"`
	Category          enums.CreditCategory `json:"category"`
	CachedBalance     int64                `json:"cached_balance"`
	RecomputedBalance int64                `json:"recomputed_balance"`
	Consistent        bool                 `json:"consistent"`
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	DB   txRunner
	Repo Repository
}

// Service is the only writer surface for ledger entries. Balances are derived
// from the latest entry's balance_after and remain rebuildable by resumming.
type Service struct {
	db   txRunner
	repo Repository
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Service{db: params.DB, repo: params.Repo}, nil
}

// Append writes one entry inside its own transaction.
func (s *Service) Append(ctx context.Context, input AppendInput) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.AppendInTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendInTx writes one entry inside the caller's open transaction. An
// advisory lock keyed on user/category is taken before reading the previous
// entry so concurrent appends serialize even when the ledger is still empty,
// keeping balance_after equal to the running sum.
func (s *Service) AppendInTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error) {
	if err := validateAppend(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	if err := repo.AcquireAppendLock(ctx, input.UserID, input.Category); err != nil {
		return nil, err
	}
	previous, err := repo.LatestEntryForUpdate(ctx, input.UserID, input.Category)
	if err != nil {
		return nil, err
	}
	var runningBalance int64
	if previous != nil {
		runningBalance = previous.BalanceAfter
	}

	entry := &models.LedgerEntry{
		UserID:       input.UserID,
		Category:     input.Category,
		Amount:       input.Amount,
		BalanceAfter: runningBalance + input.Amount,
		Source:       input.Source,
		ReferenceID:  input.ReferenceID,
		HoldID:       input.HoldID,
		Description:  input.Description,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance returns the current balance for one user/category, read from the
// latest entry's balance_after. A user with no entries has balance zero.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	if !category.IsValid() {
		return 0, fmt.Errorf("invalid credit category %q", category)
	}
	latest, err := s.repo.LatestEntry(ctx, userID, category)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.BalanceAfter, nil
}

// BalanceInTx reads the balance under the caller's transaction with the latest
// entry row-locked, for check-then-write flows.
func (s *Service) BalanceInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category enums.CreditCategory) (int64, error) {
	latest, err := s.repo.WithTx(tx).LatestEntryForUpdate(ctx, userID, category)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.BalanceAfter, nil
}

// History lists the most recent entries for a user across categories.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// Reconcile resums every entry for the user/category and compares against the
// cached balance_after of the newest entry.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*ReconcileResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("invalid credit category %q", category)
	}

	result := &ReconcileResult{UserID: userID, Category: category}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		latest, err := repo.LatestEntryForUpdate(ctx, userID, category)
		if err != nil {
			return err
		}
		if latest != nil {
			result.CachedBalance = latest.BalanceAfter
		}
		sum, err := repo.SumAmounts(ctx, userID, category)
		if err != nil {
			return err
		}
		result.RecomputedBalance = sum
		result.Consistent = result.CachedBalance == result.RecomputedBalance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActiveUsers lists users with ledger activity since the given time. The
// reconcile sweep uses it to bound its scan.
func (s *Service) ActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	return s.repo.ActiveUserIDs(ctx, since)
}

func validateAppend(input AppendInput) error {
	if input.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if !input.Category.IsValid() {
		return fmt.Errorf("invalid credit category %q", input.Category)
	}
	if !input.Source.IsValid() {
		return fmt.Errorf("invalid ledger source %q", input.Source)
	}
	if input.Amount == 0 {
		return fmt.Errorf("amount must be non-zero")
	}
	return nil
}

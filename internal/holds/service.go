package holds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/internal/audit"
	"github.com/leadpulse/leadpulse-backend/internal/ledger"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerService interface {
	AppendInTx(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, error)
	BalanceInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category enums.CreditCategory) (int64, error)
}

type auditor interface {
	Record(ctx context.Context, input audit.RecordInput)
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, title, message string)
}

// HoldInput requests a temporary credit reservation.
type HoldInput struct {
	UserID      uuid.UUID            `json:"user_id"`
	Category    enums.CreditCategory `json:"category"`
	Amount      int64                `json:"amount"`
	ReferenceID string               `json:"reference_id"`
	TTL         time.Duration        `json:"ttl,omitempty"`
}

// ConvertInput resolves a hold into a permanent ledger debit. ActualAmount is
// required; callers state how much of the reservation was really consumed.
type ConvertInput struct {
	HoldID       uuid.UUID `json:"hold_id"`
	ActualAmount int64     `json:"actual_amount"`
	Description  *string   `json:"description,omitempty"`
}

// ConvertResult reports the ledger effect of a conversion.
type ConvertResult struct {
	TransactionID    uuid.UUID `json:"transaction_id"`
	DebitedAmount    int64     `json:"debited_amount"`
	RefundedAmount   int64     `json:"refunded_amount"`
	RemainingBalance int64     `json:"remaining_balance"`
}

// ServiceParams groups dependencies for the hold service. Notifier and
// LowCreditThreshold are optional; without them conversions simply skip the
// low-balance notice.
type ServiceParams struct {
	Logger             *logger.Logger
	DB                 txRunner
	Repo               Repository
	Ledger             ledgerService
	Audit              auditor
	Notifier           notifier
	LowCreditThreshold int64
	DefaultTTL         time.Duration
	MaxTTL             time.Duration
	Now                func() time.Time
}

// Service owns the hold state machine: active holds move to exactly one of
// converted, released, or expired, and only conversion touches the ledger.
type Service struct {
	logg         *logger.Logger
	db           txRunner
	repo         Repository
	ledger       ledgerService
	audit        auditor
	notifier     notifier
	lowThreshold int64
	defaultTTL   time.Duration
	maxTTL       time.Duration
	now          func() time.Time
}

// NewService builds a hold service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("hold repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.DefaultTTL <= 0 {
		params.DefaultTTL = 30 * time.Minute
	}
	if params.MaxTTL <= 0 {
		params.MaxTTL = 2 * time.Hour
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repo,
		ledger:       params.Ledger,
		audit:        params.Audit,
		notifier:     params.Notifier,
		lowThreshold: params.LowCreditThreshold,
		defaultTTL:   params.DefaultTTL,
		maxTTL:       params.MaxTTL,
		now:          params.Now,
	}, nil
}

// Hold reserves credits when the available balance covers the request. The
// balance read locks the newest ledger row, so two concurrent holds for the
// same user/category cannot both observe a stale available figure.
func (s *Service) Hold(ctx context.Context, input HoldInput) (*models.CreditHold, error) {
	if err := validateHold(input); err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	var hold *models.CreditHold
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		total, err := s.ledger.BalanceInTx(ctx, tx, input.UserID, input.Category)
		if err != nil {
			return err
		}
		held, err := s.repo.WithTx(tx).SumActive(ctx, input.UserID, input.Category, now)
		if err != nil {
			return err
		}
		available := total - held
		if available < input.Amount {
			return pkgerrors.InsufficientCredits(available, input.Amount)
		}

		hold = &models.CreditHold{
			UserID:      input.UserID,
			Category:    input.Category,
			Amount:      input.Amount,
			ReferenceID: input.ReferenceID,
			Status:      enums.HoldStatusActive,
			ExpiresAt:   now.Add(ttl),
		}
		return s.repo.WithTx(tx).Create(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.RecordInput{
		EventType: enums.AuditEventHoldCreated,
		UserID:    input.UserID,
		Status:    enums.AuditStatusSuccess,
		Details: map[string]any{
			"hold_id":      hold.ID,
			"category":     input.Category,
			"amount":       input.Amount,
			"reference_id": input.ReferenceID,
			"expires_at":   hold.ExpiresAt,
		},
	})
	return hold, nil
}

// Convert debits the ledger for the consumed amount and refunds any unused
// remainder. The hold, the debit, and the refund commit in one transaction.
func (s *Service) Convert(ctx context.Context, input ConvertInput) (*ConvertResult, error) {
	if input.HoldID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold id is required")
	}
	if input.ActualAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual amount must be positive")
	}

	var (
		result   *ConvertResult
		userID   uuid.UUID
		category enums.CreditCategory
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		repo := s.repo.WithTx(tx)
		hold, err := s.activeHold(ctx, repo, input.HoldID, now)
		if err != nil {
			return err
		}
		if input.ActualAmount > hold.Amount {
			return pkgerrors.New(pkgerrors.CodeValidation, "actual amount exceeds hold amount").WithDetails(map[string]int64{
				"hold_amount":   hold.Amount,
				"actual_amount": input.ActualAmount,
			})
		}
		userID = hold.UserID
		category = hold.Category

		debit, err := s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
			UserID:      hold.UserID,
			Category:    hold.Category,
			Amount:      -input.ActualAmount,
			Source:      enums.LedgerSourceUsage,
			ReferenceID: &hold.ReferenceID,
			HoldID:      &hold.ID,
			Description: input.Description,
		})
		if err != nil {
			return err
		}

		remaining := debit.BalanceAfter
		var refunded int64
		if input.ActualAmount < hold.Amount {
			refunded = hold.Amount - input.ActualAmount
			refund, err := s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
				UserID:      hold.UserID,
				Category:    hold.Category,
				Amount:      refunded,
				Source:      enums.LedgerSourceRefund,
				ReferenceID: &hold.ReferenceID,
				HoldID:      &hold.ID,
			})
			if err != nil {
				return err
			}
			remaining = refund.BalanceAfter
		}

		if err := repo.Resolve(ctx, hold.ID, enums.HoldStatusConverted, now); err != nil {
			return err
		}
		result = &ConvertResult{
			TransactionID:    debit.ID,
			DebitedAmount:    input.ActualAmount,
			RefundedAmount:   refunded,
			RemainingBalance: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.RecordInput{
		EventType: enums.AuditEventHoldConverted,
		UserID:    userID,
		Status:    enums.AuditStatusSuccess,
		Details: map[string]any{
			"hold_id":         input.HoldID,
			"transaction_id":  result.TransactionID,
			"debited_amount":  result.DebitedAmount,
			"refunded_amount": result.RefundedAmount,
		},
	})
	if s.notifier != nil && s.lowThreshold > 0 && result.RemainingBalance < s.lowThreshold {
		s.notifier.Notify(ctx, userID, enums.NotificationTypeCreditsLow,
			"Credits running low",
			fmt.Sprintf("You have %d %s credits left. Top up to keep your campaigns running.", result.RemainingBalance, category))
	}
	return result, nil
}

// Release returns a hold's amount to availability without any ledger entry.
func (s *Service) Release(ctx context.Context, holdID uuid.UUID, reason *string) (int64, error) {
	if holdID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "hold id is required")
	}

	var (
		released int64
		userID   uuid.UUID
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		repo := s.repo.WithTx(tx)
		hold, err := s.activeHold(ctx, repo, holdID, now)
		if err != nil {
			return err
		}
		if err := repo.Resolve(ctx, hold.ID, enums.HoldStatusReleased, now); err != nil {
			return err
		}
		released = hold.Amount
		userID = hold.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}

	details := map[string]any{
		"hold_id":         holdID,
		"amount_released": released,
	}
	if reason != nil {
		details["reason"] = *reason
	}
	s.audit.Record(ctx, audit.RecordInput{
		EventType: enums.AuditEventHoldReleased,
		UserID:    userID,
		Status:    enums.AuditStatusSuccess,
		Details:   details,
	})
	return released, nil
}

// CleanupExpired sweeps active holds past their expiry into the expired state.
// Idempotent; the expiry bound is re-checked inside the update.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired_count", count), "expired stale credit holds")
	}
	return count, nil
}

// HeldAmount totals active, unexpired holds for one user/category.
func (s *Service) HeldAmount(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	if !category.IsValid() {
		return 0, fmt.Errorf("invalid credit category %q", category)
	}
	return s.repo.SumActive(ctx, userID, category, s.now())
}

// Find returns a hold by id without state requirements.
func (s *Service) Find(ctx context.Context, holdID uuid.UUID) (*models.CreditHold, error) {
	if holdID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold id is required")
	}
	hold, err := s.repo.FindByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, pkgerrors.New(pkgerrors.CodeHoldNotFound, "hold not found")
	}
	return hold, nil
}

// activeHold loads a hold under a row lock and enforces the active, unexpired
// precondition shared by Convert and Release. Holds past their expiry are left
// for the cleanup sweep; the surrounding transaction rolls back regardless.
func (s *Service) activeHold(ctx context.Context, repo Repository, holdID uuid.UUID, now time.Time) (*models.CreditHold, error) {
	hold, err := repo.FindByIDForUpdate(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold == nil || hold.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeHoldNotFound, "hold not found")
	}
	if !hold.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeHoldExpired, "hold expired").WithDetails(map[string]any{
			"hold_id":    hold.ID,
			"expired_at": hold.ExpiresAt,
		})
	}
	return hold, nil
}

func validateHold(input HoldInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit category %q", input.Category))
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.ReferenceID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}
	return nil
}

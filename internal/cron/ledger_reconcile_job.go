package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/leadpulse/leadpulse-backend/internal/ledger"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

// Window overlaps the daily cadence so a slow or skipped cycle still gets
// every active user rechecked.
const defaultReconcileWindow = 48 * time.Hour

type ledgerReconciler interface {
	ActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*ledger.ReconcileResult, error)
}

type LedgerReconcileJobParams struct {
	Logger *logger.Logger
	Ledger ledgerReconciler
	Window time.Duration
}

// NewLedgerReconcileJob builds the sweep that recomputes balances for
// recently active users and flags drift between the running balance and the
// entry sum.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultReconcileWindow
	}
	return &ledgerReconcileJob{
		logg:   params.Logger,
		ledger: params.Ledger,
		window: window,
		now:    time.Now,
	}, nil
}

type ledgerReconcileJob struct {
	logg   *logger.Logger
	ledger ledgerReconciler
	window time.Duration
	now    func() time.Time
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	userIDs, err := j.ledger.ActiveUsers(ctx, since)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	// One broken row must not stop the sweep; failures are combined at the end.
	var errs []error
	var checked, inconsistent int
	for _, userID := range userIDs {
		for _, category := range enums.AllCreditCategories() {
			result, err := j.ledger.Reconcile(ctx, userID, category)
			if err != nil {
				errs = append(errs, fmt.Errorf("reconcile user %s %s: %w", userID, category, err))
				continue
			}
			checked++
			if !result.Consistent {
				inconsistent++
				logCtx := j.logg.WithFields(ctx, map[string]any{
					"user_id":    userID,
					"category":   category,
					"cached":     result.CachedBalance,
					"recomputed": result.RecomputedBalance,
				})
				j.logg.Error(logCtx, "ledger balance drift", nil)
			}
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users_checked": len(userIDs),
		"balances":      checked,
		"inconsistent":  inconsistent,
	})
	j.logg.Info(logCtx, "ledger reconcile complete")
	if inconsistent > 0 {
		errs = append(errs, fmt.Errorf("%d inconsistent balances", inconsistent))
	}
	return multierr.Combine(errs...)
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	latest   *models.LedgerEntry
	sum      int64
	created  []*models.LedgerEntry
	calls    []string
	createFn func(ctx context.Context, entry *models.LedgerEntry) error
	lockErr  error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) AcquireAppendLock(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) error {
	f.calls = append(f.calls, "lock")
	return f.lockErr
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, entry); err != nil {
			return err
		}
	}
	f.calls = append(f.calls, "create")
	f.created = append(f.created, entry)
	f.latest = entry
	return nil
}

func (f *fakeRepository) LatestEntry(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*models.LedgerEntry, error) {
	return f.latest, nil
}

func (f *fakeRepository) LatestEntryForUpdate(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*models.LedgerEntry, error) {
	f.calls = append(f.calls, "read-latest")
	return f.latest, nil
}

func (f *fakeRepository) SumAmounts(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error) {
	return f.sum, nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeRepository) ActiveUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{DB: stubTxRunner{}, Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_AppendComputesRunningBalance(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)
	userID := uuid.New()

	first, err := svc.Append(context.Background(), AppendInput{
		UserID:   userID,
		Category: enums.CreditCategoryScraper,
		Amount:   1000,
		Source:   enums.LedgerSourceMonthlyAllocation,
	})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if first.BalanceAfter != 1000 {
		t.Fatalf("expected balance_after 1000, got %d", first.BalanceAfter)
	}

	second, err := svc.Append(context.Background(), AppendInput{
		UserID:   userID,
		Category: enums.CreditCategoryScraper,
		Amount:   -300,
		Source:   enums.LedgerSourceUsage,
	})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if second.BalanceAfter != 700 {
		t.Fatalf("expected balance_after 700, got %d", second.BalanceAfter)
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(repo.created))
	}
}

func TestService_AppendLocksBeforeReadingEvenWhenEmpty(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	// First append for a user/category has no row to lock; the append lock
	// must still be taken before the previous entry is read.
	_, err := svc.Append(context.Background(), AppendInput{
		UserID:   uuid.New(),
		Category: enums.CreditCategoryInteraction,
		Amount:   500,
		Source:   enums.LedgerSourceTopupPurchase,
	})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	want := []string{"lock", "read-latest", "create"}
	if len(repo.calls) != len(want) {
		t.Fatalf("unexpected call sequence %v", repo.calls)
	}
	for i, call := range want {
		if repo.calls[i] != call {
			t.Fatalf("expected call %d to be %q, got %v", i, call, repo.calls)
		}
	}
}

func TestService_AppendFailsWhenLockUnavailable(t *testing.T) {
	repo := &fakeRepository{lockErr: errors.New("lock timeout")}
	svc := newTestService(t, repo)

	_, err := svc.Append(context.Background(), AppendInput{
		UserID:   uuid.New(),
		Category: enums.CreditCategoryScraper,
		Amount:   100,
		Source:   enums.LedgerSourceTopupPurchase,
	})
	if err == nil {
		t.Fatal("expected lock error to surface")
	}
	if len(repo.created) != 0 {
		t.Fatalf("no entry may be written without the lock, got %d", len(repo.created))
	}
}

func TestService_AppendValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	tests := []struct {
		name  string
		input AppendInput
	}{
		{
			name: "missing user id",
			input: AppendInput{
				Category: enums.CreditCategoryScraper,
				Amount:   10,
				Source:   enums.LedgerSourceUsage,
			},
		},
		{
			name: "invalid category",
			input: AppendInput{
				UserID:   uuid.New(),
				Category: enums.CreditCategory("not_real"),
				Amount:   10,
				Source:   enums.LedgerSourceUsage,
			},
		},
		{
			name: "invalid source",
			input: AppendInput{
				UserID:   uuid.New(),
				Category: enums.CreditCategoryInteraction,
				Amount:   10,
				Source:   enums.LedgerSource("not_real"),
			},
		},
		{
			name: "zero amount",
			input: AppendInput{
				UserID:   uuid.New(),
				Category: enums.CreditCategoryInteraction,
				Source:   enums.LedgerSourceUsage,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Append(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_AppendRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		return expectedErr
	}

	if _, err := svc.Append(context.Background(), AppendInput{
		UserID:   uuid.New(),
		Category: enums.CreditCategoryScraper,
		Amount:   5,
		Source:   enums.LedgerSourceUsage,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_BalanceReadsLatestEntry(t *testing.T) {
	repo := &fakeRepository{latest: &models.LedgerEntry{BalanceAfter: 1234}}
	svc := newTestService(t, repo)

	balance, err := svc.Balance(context.Background(), uuid.New(), enums.CreditCategoryInteraction)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if balance != 1234 {
		t.Fatalf("expected 1234, got %d", balance)
	}
}

func TestService_BalanceEmptyLedgerIsZero(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	balance, err := svc.Balance(context.Background(), uuid.New(), enums.CreditCategoryScraper)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0, got %d", balance)
	}
}

func TestService_ReconcileFlagsDrift(t *testing.T) {
	repo := &fakeRepository{
		latest: &models.LedgerEntry{BalanceAfter: 500},
		sum:    450,
	}
	svc := newTestService(t, repo)

	result, err := svc.Reconcile(context.Background(), uuid.New(), enums.CreditCategoryScraper)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Consistent {
		t.Fatal("expected inconsistency to be reported")
	}
	if result.CachedBalance != 500 || result.RecomputedBalance != 450 {
		t.Fatalf("unexpected reconcile values: %+v", result)
	}
}

func TestService_ReconcileConsistent(t *testing.T) {
	repo := &fakeRepository{
		latest: &models.LedgerEntry{BalanceAfter: 450},
		sum:    450,
	}
	svc := newTestService(t, repo)

	result, err := svc.Reconcile(context.Background(), uuid.New(), enums.CreditCategoryScraper)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if !result.Consistent {
		t.Fatalf("expected consistent result, got %+v", result)
	}
}

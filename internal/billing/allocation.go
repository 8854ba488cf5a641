package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/internal/ledger"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// allocateMonthlyCredits applies the per-category allocation policies inside
// the caller's transaction.
//
// Interaction credits reset: the current balance is debited to zero before
// the new allocation is credited, so unused interaction credits never carry
// over. Scraper credits accumulate: only the new allocation is credited and
// whatever remains keeps rolling forward. The asymmetry is a product rule.
func (s *Service) allocateMonthlyCredits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan *models.BillingPlan, referenceID string) error {
	current, err := s.ledger.BalanceInTx(ctx, tx, userID, enums.CreditCategoryInteraction)
	if err != nil {
		return err
	}
	if current != 0 {
		if _, err := s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
			UserID:      userID,
			Category:    enums.CreditCategoryInteraction,
			Amount:      -current,
			Source:      enums.LedgerSourceMonthlyReset,
			ReferenceID: &referenceID,
		}); err != nil {
			return err
		}
	}
	if plan.InteractionCredits > 0 {
		if _, err := s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
			UserID:      userID,
			Category:    enums.CreditCategoryInteraction,
			Amount:      plan.InteractionCredits,
			Source:      enums.LedgerSourceMonthlyAllocation,
			ReferenceID: &referenceID,
		}); err != nil {
			return err
		}
	}

	if plan.ScraperCredits > 0 {
		if _, err := s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
			UserID:      userID,
			Category:    enums.CreditCategoryScraper,
			Amount:      plan.ScraperCredits,
			Source:      enums.LedgerSourceMonthlyAllocation,
			ReferenceID: &referenceID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// allocateTrialCredits grants the plan's trial credits. Trials accumulate
// nothing and reset nothing; the grant is a plain credit per category.
func (s *Service) allocateTrialCredits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan *models.BillingPlan, referenceID string) error {
	grants := map[enums.CreditCategory]int64{
		enums.CreditCategoryScraper:     plan.TrialScraperCredits,
		enums.CreditCategoryInteraction: plan.TrialInteractionCredits,
	}
	for _, category := range enums.AllCreditCategories() {
		amount := grants[category]
		if amount <= 0 {
			continue
		}
		if _, err := s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
			UserID:      userID,
			Category:    category,
			Amount:      amount,
			Source:      enums.LedgerSourceTrialAllocation,
			ReferenceID: &referenceID,
		}); err != nil {
			return err
		}
	}
	return nil
}

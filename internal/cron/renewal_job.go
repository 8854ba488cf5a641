package cron

import (
	"context"
	"fmt"

	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type renewalRunner interface {
	RunRenewalPass(ctx context.Context, batchSize int) (*billing.PassResult, error)
}

type RenewalJobParams struct {
	Logger    *logger.Logger
	Billing   renewalRunner
	BatchSize int
}

// NewRenewalJob builds the daily pass that renews lapsed subscriptions.
func NewRenewalJob(params RenewalJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	return &renewalJob{
		logg:      params.Logger,
		billing:   params.Billing,
		batchSize: params.BatchSize,
	}, nil
}

type renewalJob struct {
	logg      *logger.Logger
	billing   renewalRunner
	batchSize int
}

func (j *renewalJob) Name() string { return "billing-renewal" }

func (j *renewalJob) Run(ctx context.Context) error {
	result, err := j.billing.RunRenewalPass(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("renewal pass: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed": result.ProcessedCount,
		"outcomes":  countStatuses(result),
	})
	j.logg.Info(logCtx, "renewal pass complete")
	return nil
}

func countStatuses(result *billing.PassResult) map[string]int {
	counts := map[string]int{}
	for _, item := range result.Results {
		counts[item.Status]++
	}
	return counts
}

package cron

import (
	"context"
	"fmt"

	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type retryRunner interface {
	RunRetryPass(ctx context.Context, batchSize int) (*billing.PassResult, error)
}

type RetryJobParams struct {
	Logger    *logger.Logger
	Retries   retryRunner
	BatchSize int
}

// NewRetryJob builds the daily pass that executes due payment retries.
func NewRetryJob(params RetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Retries == nil {
		return nil, fmt.Errorf("retry service required")
	}
	return &retryJob{
		logg:      params.Logger,
		retries:   params.Retries,
		batchSize: params.BatchSize,
	}, nil
}

type retryJob struct {
	logg      *logger.Logger
	retries   retryRunner
	batchSize int
}

func (j *retryJob) Name() string { return "payment-retry" }

func (j *retryJob) Run(ctx context.Context) error {
	result, err := j.retries.RunRetryPass(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("retry pass: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed": result.ProcessedCount,
		"outcomes":  countStatuses(result),
	})
	j.logg.Info(logCtx, "retry pass complete")
	return nil
}

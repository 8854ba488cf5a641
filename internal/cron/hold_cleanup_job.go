package cron

import (
	"context"
	"fmt"

	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type holdSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type HoldCleanupJobParams struct {
	Logger *logger.Logger
	Holds  holdSweeper
}

// NewHoldCleanupJob builds the sweep that retires credit holds past their
// expiry, returning their reserved credits to availability.
func NewHoldCleanupJob(params HoldCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("holds service required")
	}
	return &holdCleanupJob{
		logg:  params.Logger,
		holds: params.Holds,
	}, nil
}

type holdCleanupJob struct {
	logg  *logger.Logger
	holds holdSweeper
}

func (j *holdCleanupJob) Name() string { return "hold-cleanup" }

func (j *holdCleanupJob) Run(ctx context.Context) error {
	expired, err := j.holds.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("hold cleanup: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "holds_expired", expired)
	j.logg.Info(logCtx, "hold cleanup complete")
	return nil
}

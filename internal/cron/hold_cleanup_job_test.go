package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type fakeHoldSweeper struct {
	expired int64
	err     error
	called  int
}

func (f *fakeHoldSweeper) CleanupExpired(ctx context.Context) (int64, error) {
	f.called++
	if f.err != nil {
		return 0, f.err
	}
	return f.expired, nil
}

func TestHoldCleanupJobSweeps(t *testing.T) {
	sweeper := &fakeHoldSweeper{expired: 3}
	job, err := NewHoldCleanupJob(HoldCleanupJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Holds:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewHoldCleanupJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.called != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.called)
	}
}

func TestHoldCleanupJobPropagatesErrors(t *testing.T) {
	sweeper := &fakeHoldSweeper{err: errors.New("boom")}
	job, err := NewHoldCleanupJob(HoldCleanupJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Holds:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewHoldCleanupJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type slotSweepTxRunner struct{}

func (slotSweepTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeAvailabilitySweeper struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeAvailabilitySweeper) DeleteAvailabilityEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestSlotSweepDeletesExpiredSlots(t *testing.T) {
	sweeper := &fakeAvailabilitySweeper{deleted: 4}
	job, err := NewSlotSweepJob(SlotSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         slotSweepTxRunner{},
		Repository: sweeper,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	before := time.Now().UTC()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.cutoff.Before(before) {
		t.Fatalf("expected cutoff at run time, got %s", sweeper.cutoff)
	}
}

func TestSlotSweepSurfacesErrors(t *testing.T) {
	sweeper := &fakeAvailabilitySweeper{err: errors.New("db down")}
	job, err := NewSlotSweepJob(SlotSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         slotSweepTxRunner{},
		Repository: sweeper,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error surfaced")
	}
}

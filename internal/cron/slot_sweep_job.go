package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type availabilitySweeper interface {
	DeleteAvailabilityEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// SlotSweepJobParams configure the expired availability sweep.
type SlotSweepJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository availabilitySweeper
}

// NewSlotSweepJob builds the cron job that removes availability slots whose
// window has already passed.
func NewSlotSweepJob(params SlotSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	return &slotSweepJob{
		logg: params.Logger,
		db:   params.DB,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type slotSweepJob struct {
	logg *logger.Logger
	db   txRunner
	repo availabilitySweeper
	now  func() time.Time
}

func (j *slotSweepJob) Name() string { return "slot-sweep" }

func (j *slotSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteAvailabilityEndedBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("slot sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "availability slot sweep complete")
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
)

const (
	defaultAbandonAfter = 7 * 24 * time.Hour
	defaultAbandonBatch = 500
)

type cartSweeper interface {
	AbandonStale(ctx context.Context, before time.Time, limit int) (int, error)
}

type AbandonedCartJobParams struct {
	Logger    *logger.Logger
	Carts     cartSweeper
	After     time.Duration
	BatchSize int
}

// NewAbandonedCartJob marks active carts idle longer than After as abandoned.
func NewAbandonedCartJob(params AbandonedCartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultAbandonAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAbandonBatch
	}
	return &abandonedCartJob{
		logg:  params.Logger,
		carts: params.Carts,
		after: after,
		batch: batch,
		now:   time.Now,
	}, nil
}

type abandonedCartJob struct {
	logg  *logger.Logger
	carts cartSweeper
	after time.Duration
	batch int
	now   func() time.Time
}

func (j *abandonedCartJob) Name() string { return "abandoned_cart_sweep" }

func (j *abandonedCartJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	total := 0
	for {
		n, err := j.carts.AbandonStale(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("abandon stale carts: %w", err)
		}
		if n < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"carts_abandoned": total,
	})
	j.logg.Info(logCtx, "abandoned cart sweep complete")
	return nil
}

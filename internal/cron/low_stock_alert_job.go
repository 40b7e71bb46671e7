package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox/payloads"
)

const defaultAlertCooldown = 24 * time.Hour

type lowStockLister interface {
	ListLowStock(ctx context.Context) ([]models.Stock, error)
}

type lowMaterialLister interface {
	ListLowMaterials(ctx context.Context) ([]models.RawMaterial, error)
}

// alertDeduper suppresses repeat alerts; SetNX reports true for a new key.
type alertDeduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

type LowStockAlertJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Stock     lowStockLister
	Materials lowMaterialLister
	Outbox    outbox.Emitter
	Dedupe    alertDeduper
	KeyPrefix string
	Cooldown  time.Duration
}

// NewLowStockAlertJob emits low stock and low material events. It only reads
// ledger tables; the events go through the outbox.
func NewLowStockAlertJob(params LowStockAlertJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Materials == nil {
		return nil, fmt.Errorf("manufacturing service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	cooldown := params.Cooldown
	if cooldown <= 0 {
		cooldown = defaultAlertCooldown
	}
	return &lowStockAlertJob{
		logg:      params.Logger,
		db:        params.DB,
		stock:     params.Stock,
		materials: params.Materials,
		outbox:    params.Outbox,
		dedupe:    params.Dedupe,
		prefix:    params.KeyPrefix,
		cooldown:  cooldown,
	}, nil
}

type lowStockAlertJob struct {
	logg      *logger.Logger
	db        txRunner
	stock     lowStockLister
	materials lowMaterialLister
	outbox    outbox.Emitter
	dedupe    alertDeduper
	prefix    string
	cooldown  time.Duration
}

func (j *lowStockAlertJob) Name() string { return "low_stock_alert_scan" }

func (j *lowStockAlertJob) Run(ctx context.Context) error {
	var events []outbox.DomainEvent
	var errs error

	stock, err := j.stock.ListLowStock(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list low stock: %w", err))
	}
	for _, row := range stock {
		if !j.fresh(ctx, "stock:"+row.VariantSizeID.String()) {
			continue
		}
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateStock,
			AggregateID:   row.VariantSizeID,
			Data: payloads.LowStockDetectedEvent{
				VariantSizeID: row.VariantSizeID,
				Available:     row.Available(),
				Threshold:     row.LowStockThreshold,
			},
		})
	}

	materials, err := j.materials.ListLowMaterials(ctx)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list low materials: %w", err))
	}
	for _, m := range materials {
		if !j.fresh(ctx, "material:"+m.ID.String()) {
			continue
		}
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventLowMaterialDetected,
			AggregateType: enums.AggregateRawMaterial,
			AggregateID:   m.ID,
			Data: payloads.LowMaterialDetectedEvent{
				RawMaterialID:   m.ID,
				Name:            m.Name,
				CurrentQuantity: m.CurrentQuantity,
				ReorderLevel:    m.ReorderLevel,
			},
		})
	}

	if len(events) > 0 {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			for _, event := range events {
				if err := j.outbox.Emit(ctx, tx, event); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("emit low stock alerts: %w", err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"low_stock":     len(stock),
		"low_materials": len(materials),
		"alerts":        len(events),
	})
	j.logg.Info(logCtx, "low stock alert scan complete")
	return errs
}

// fresh reports whether an alert for key is outside its cooldown. Without a
// deduper, or when Redis fails, every scan alerts.
func (j *lowStockAlertJob) fresh(ctx context.Context, key string) bool {
	if j.dedupe == nil {
		return true
	}
	ok, err := j.dedupe.SetNX(ctx, j.prefix+key, "1", j.cooldown)
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "alert_key", key), "alert dedupe unavailable")
		return true
	}
	return ok
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
)

type fakeStockLister struct {
	rows []models.Stock
	err  error
}

func (f fakeStockLister) ListLowStock(context.Context) ([]models.Stock, error) {
	return f.rows, f.err
}

type fakeMaterialLister struct {
	rows []models.RawMaterial
}

func (f fakeMaterialLister) ListLowMaterials(context.Context) ([]models.RawMaterial, error) {
	return f.rows, nil
}

type memoryDeduper struct {
	keys map[string]bool
}

func (m *memoryDeduper) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func TestLowStockAlertJobEmitsOncePerCooldown(t *testing.T) {
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	unitID, materialID := uuid.New(), uuid.New()

	jobIface, err := NewLowStockAlertJob(LowStockAlertJobParams{
		Logger: logger.Nop(),
		DB:     dbtest.Client(conn),
		Stock: fakeStockLister{rows: []models.Stock{
			{VariantSizeID: unitID, QuantityInStock: 12, QuantityReserved: 4, LowStockThreshold: 10},
		}},
		Materials: fakeMaterialLister{rows: []models.RawMaterial{
			{ID: materialID, Name: "cotton poplin", CurrentQuantity: decimal.NewFromInt(8), ReorderLevel: decimal.NewFromInt(20)},
		}},
		Outbox: outbox.NewService(outboxRepo, nil),
		Dedupe: &memoryDeduper{keys: map[string]bool{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "low_stock_alert_scan", jobIface.Name())

	require.NoError(t, jobIface.Run(context.Background()))
	require.NoError(t, jobIface.Run(context.Background()))

	stockEvents, err := outboxRepo.ListByAggregate(nil, unitID)
	require.NoError(t, err)
	require.Len(t, stockEvents, 1)
	assert.Equal(t, enums.EventLowStockDetected, stockEvents[0].EventType)

	materialEvents, err := outboxRepo.ListByAggregate(nil, materialID)
	require.NoError(t, err)
	require.Len(t, materialEvents, 1)
	assert.Equal(t, enums.EventLowMaterialDetected, materialEvents[0].EventType)
}

func TestLowStockAlertJobStillScansMaterialsWhenStockFails(t *testing.T) {
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	materialID := uuid.New()

	jobIface, err := NewLowStockAlertJob(LowStockAlertJobParams{
		Logger: logger.Nop(),
		DB:     dbtest.Client(conn),
		Stock:  fakeStockLister{err: errors.New("stock table locked")},
		Materials: fakeMaterialLister{rows: []models.RawMaterial{
			{ID: materialID, Name: "shell button", CurrentQuantity: decimal.Zero, ReorderLevel: decimal.NewFromInt(50)},
		}},
		Outbox: outbox.NewService(outboxRepo, nil),
	})
	require.NoError(t, err)

	err = jobIface.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list low stock")

	events, err := outboxRepo.ListByAggregate(nil, materialID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

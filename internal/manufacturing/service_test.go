package manufacturing_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/internal/manufacturing"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
)

type fixture struct {
	conn   *gorm.DB
	svc    manufacturing.Service
	outbox *outbox.Repository
	unit   *models.VariantSize
	fabric *models.RawMaterial
	button *models.RawMaterial
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T, fabricOnHand, buttonsOnHand string) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	svc, err := manufacturing.NewService(manufacturing.NewRepository(conn), dbtest.Client(conn), outbox.NewService(outboxRepo, nil))
	require.NoError(t, err)

	unit := dbtest.SeedUnit(t, conn, dbtest.Unit{InStock: 100})
	fabric := &models.RawMaterial{Name: "cotton poplin", Unit: "m", CurrentQuantity: dec(fabricOnHand), ReorderLevel: dec("20")}
	button := &models.RawMaterial{Name: "shell button", Unit: "pcs", CurrentQuantity: dec(buttonsOnHand), ReorderLevel: dec("50")}
	require.NoError(t, conn.Create(fabric).Error)
	require.NoError(t, conn.Create(button).Error)
	require.NoError(t, conn.Create(&models.ManufacturingSpecification{
		VariantSizeID: unit.ID, RawMaterialID: fabric.ID, QuantityRequired: dec("1.5"),
	}).Error)
	require.NoError(t, conn.Create(&models.ManufacturingSpecification{
		VariantSizeID: unit.ID, RawMaterialID: button.ID, QuantityRequired: dec("6"),
	}).Error)

	return fixture{conn: conn, svc: svc, outbox: outboxRepo, unit: unit, fabric: fabric, button: button}
}

func (f fixture) material(t *testing.T, id uuid.UUID) models.RawMaterial {
	t.Helper()
	var m models.RawMaterial
	require.NoError(t, f.conn.First(&m, "id = ?", id).Error)
	return m
}

func TestRequirementsAggregatesAcrossLines(t *testing.T) {
	unitA, unitB, fabric, thread := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	items := []models.OrderItem{
		{VariantSizeID: unitA, Quantity: 10},
		{VariantSizeID: unitB, Quantity: 4},
		{VariantSizeID: uuid.New(), Quantity: 3},
	}
	specs := []models.ManufacturingSpecification{
		{VariantSizeID: unitA, RawMaterialID: fabric, QuantityRequired: dec("1.5")},
		{VariantSizeID: unitB, RawMaterialID: fabric, QuantityRequired: dec("1.75")},
		{VariantSizeID: unitB, RawMaterialID: thread, QuantityRequired: dec("0.25")},
	}

	got := manufacturing.Requirements(items, specs)
	require.Len(t, got, 2)
	assert.True(t, got[fabric].Equal(dec("22")), "fabric %s", got[fabric])
	assert.True(t, got[thread].Equal(dec("1")), "thread %s", got[thread])
}

func TestMaterialRequirementsForOrder(t *testing.T) {
	f := newFixture(t, "100", "500")
	order := dbtest.SeedOrder(t, f.conn, uuid.New(), enums.OrderStatusConfirmed, dbtest.Line{Unit: f.unit, Quantity: 10})

	got, err := f.svc.MaterialRequirements(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, got[f.fabric.ID].Equal(dec("15")), "fabric %s", got[f.fabric.ID])
	assert.True(t, got[f.button.ID].Equal(dec("60")), "buttons %s", got[f.button.ID])

	_, err = f.svc.MaterialRequirements(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCheckFeasibilityReportsShortages(t *testing.T) {
	f := newFixture(t, "10", "500")
	order := dbtest.SeedOrder(t, f.conn, uuid.New(), enums.OrderStatusConfirmed, dbtest.Line{Unit: f.unit, Quantity: 10})

	check, err := f.svc.CheckFeasibility(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, check.Feasible)
	shortages := check.Shortages()
	require.Len(t, shortages, 1)
	assert.Equal(t, f.fabric.ID, shortages[0].RawMaterialID)
	assert.Equal(t, "m", shortages[0].Unit)
	assert.True(t, shortages[0].Shortage.Equal(dec("5")))
}

func TestDeductRawMaterialsOnce(t *testing.T) {
	f := newFixture(t, "100", "500")
	ctx := context.Background()
	order := dbtest.SeedOrder(t, f.conn, uuid.New(), enums.OrderStatusProcessing, dbtest.Line{Unit: f.unit, Quantity: 10})

	check, err := f.svc.DeductRawMaterials(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.True(t, check.Feasible)
	assert.True(t, f.material(t, f.fabric.ID).CurrentQuantity.Equal(dec("85")))
	assert.True(t, f.material(t, f.button.ID).CurrentQuantity.Equal(dec("440")))

	events, err := f.outbox.ListByAggregate(nil, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventRawMaterialsDeducted, events[0].EventType)

	_, err = f.svc.DeductRawMaterials(ctx, nil, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.True(t, f.material(t, f.fabric.ID).CurrentQuantity.Equal(dec("85")))
}

func TestDeductRawMaterialsShortageAbortsBatch(t *testing.T) {
	f := newFixture(t, "100", "30")
	order := dbtest.SeedOrder(t, f.conn, uuid.New(), enums.OrderStatusConfirmed, dbtest.Line{Unit: f.unit, Quantity: 10})

	_, err := f.svc.DeductRawMaterials(context.Background(), nil, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.True(t, f.material(t, f.fabric.ID).CurrentQuantity.Equal(dec("100")))
	assert.True(t, f.material(t, f.button.ID).CurrentQuantity.Equal(dec("30")))

	var reloaded models.Order
	require.NoError(t, f.conn.First(&reloaded, "id = ?", order.ID).Error)
	assert.Nil(t, reloaded.MaterialsDeductedAt)
}

func TestDeductRawMaterialsRequiresConfirmedOrder(t *testing.T) {
	f := newFixture(t, "100", "500")
	order := dbtest.SeedOrder(t, f.conn, uuid.New(), enums.OrderStatusPending, dbtest.Line{Unit: f.unit, Quantity: 1})

	_, err := f.svc.DeductRawMaterials(context.Background(), nil, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.True(t, f.material(t, f.fabric.ID).CurrentQuantity.Equal(dec("100")))
}

func TestListLowMaterials(t *testing.T) {
	f := newFixture(t, "20", "500")

	low, err := f.svc.ListLowMaterials(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "cotton poplin", low[0].Name)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := manufacturing.NewService(nil, nil, nil)
	assert.Error(t, err)
}

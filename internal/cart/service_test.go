package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/internal/cart"
	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
)

type fixedRate decimal.Decimal

func (r fixedRate) ActiveRate(context.Context, time.Time) (decimal.Decimal, error) {
	return decimal.Decimal(r), nil
}

func newCartService(t *testing.T, conn *gorm.DB) cart.Service {
	t.Helper()
	svc, err := cart.NewService(
		cart.NewRepository(conn),
		catalog.NewRepository(conn),
		dbtest.Client(conn),
		fixedRate(decimal.NewFromInt(5)),
		outbox.NewService(outbox.NewRepository(conn), nil),
	)
	require.NoError(t, err)
	return svc
}

func TestGetActiveCartIsSingleton(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	user := uuid.New()

	first, err := svc.GetActiveCart(context.Background(), user)
	require.NoError(t, err)
	second, err := svc.GetActiveCart(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("user_id = ?", user).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAddItemMergesLinesAndPrices(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	user := uuid.New()
	unit := dbtest.SeedUnit(t, conn, dbtest.Unit{BasePrice: "500.00", Markup: "5", InStock: 10})

	_, err := svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: unit.ID, Quantity: 2})
	require.NoError(t, err)
	view, err := svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: unit.ID, Quantity: 4})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	require.Equal(t, 6, view.Items[0].Quantity)
	require.True(t, view.Items[0].UnitPrice.Equal(decimal.RequireFromString("525")))
	require.True(t, view.Subtotal.Equal(decimal.RequireFromString("3150")))
	require.True(t, view.Tax.Equal(decimal.RequireFromString("157.5")))
	require.True(t, view.Total.Equal(decimal.RequireFromString("3307.5")))
	require.Equal(t, 6, view.ItemCount)
}

func TestAddItemRejectsMoreThanAvailable(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	user := uuid.New()
	unit := dbtest.SeedUnit(t, conn, dbtest.Unit{InStock: 5, Reserved: 2})

	_, err := svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: unit.ID, Quantity: 4})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "unexpected error %v", err)

	_, err = svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: unit.ID, Quantity: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: uuid.New(), Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateItemToZeroRemovesLine(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	user := uuid.New()
	unit := dbtest.SeedUnit(t, conn, dbtest.Unit{InStock: 10})

	view, err := svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: unit.ID, Quantity: 2})
	require.NoError(t, err)
	itemID := view.Items[0].ItemID

	view, err = svc.UpdateItem(context.Background(), user, itemID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, view.Items[0].Quantity)

	view, err = svc.UpdateItem(context.Background(), user, itemID, 0)
	require.NoError(t, err)
	require.Empty(t, view.Items)

	_, err = svc.RemoveItem(context.Background(), uuid.New(), itemID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestClearEmptiesCart(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	user := uuid.New()
	a := dbtest.SeedUnit(t, conn, dbtest.Unit{InStock: 10})
	b := dbtest.SeedUnit(t, conn, dbtest.Unit{InStock: 10})

	_, err := svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: b.ID, Quantity: 1})
	require.NoError(t, err)

	view, err := svc.Clear(context.Background(), user)
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.True(t, view.Total.IsZero())
}

func TestValidateStockFlagsShortLines(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	user := uuid.New()
	unit := dbtest.SeedUnit(t, conn, dbtest.Unit{InStock: 10})

	_, err := svc.AddItem(context.Background(), user, cart.AddItemInput{VariantSizeID: unit.ID, Quantity: 8})
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.Stock{}).Where("variant_size_id = ?", unit.ID).Update("quantity_reserved", 7).Error)

	result, err := svc.ValidateStock(context.Background(), user)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	require.Equal(t, 3, result.Issues[0].Available)
	require.Equal(t, 8, result.Issues[0].Requested)
}

func TestAbandonStaleMarksIdleCarts(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newCartService(t, conn)
	now := time.Now().UTC()

	idle := &models.Cart{UserID: uuid.New(), Status: enums.CartStatusActive, LastActivityAt: now.Add(-10 * 24 * time.Hour)}
	fresh := &models.Cart{UserID: uuid.New(), Status: enums.CartStatusActive, LastActivityAt: now.Add(-time.Hour)}
	require.NoError(t, conn.Create(idle).Error)
	require.NoError(t, conn.Create(fresh).Error)

	n, err := svc.AbandonStale(context.Background(), now.Add(-7*24*time.Hour), 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var reloaded models.Cart
	require.NoError(t, conn.First(&reloaded, "id = ?", idle.ID).Error)
	require.Equal(t, enums.CartStatusAbandoned, reloaded.Status)
	require.NoError(t, conn.First(&reloaded, "id = ?", fresh.ID).Error)
	require.Equal(t, enums.CartStatusActive, reloaded.Status)

	events, err := outbox.NewRepository(conn).ListByAggregate(nil, idle.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventCartAbandoned, events[0].EventType)

	view, err := svc.GetActiveCart(context.Background(), idle.UserID)
	require.NoError(t, err)
	require.NotEqual(t, idle.ID, view.ID)
}

package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
)

func TestResolveUnitPriceAppliesSizeMarkup(t *testing.T) {
	conn := dbtest.Open(t)
	vs := dbtest.SeedUnit(t, conn, dbtest.Unit{BasePrice: "500.00", Markup: "12.5", InStock: 20, Reserved: 5})

	svc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)

	price, err := svc.ResolveUnitPrice(context.Background(), vs.ID)
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("562.50")), "got %s", price)

	view, err := svc.GetVariantSize(context.Background(), vs.ID)
	require.NoError(t, err)
	require.Equal(t, 15, view.Available)
	require.Equal(t, vs.Variant.SKU, view.SKU)
}

func TestGetVariantSizeNotFound(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)

	_, err = svc.GetVariantSize(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unexpected error %v", err)
}

func TestListVariantsIncludesSizes(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedUnit(t, conn, dbtest.Unit{SKU: "OXF-WHT", BasePrice: "400.00", InStock: 3})

	svc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)

	variants, err := svc.ListVariants(context.Background())
	require.NoError(t, err)
	require.Len(t, variants, 1)
	require.Equal(t, "OXF-WHT", variants[0].SKU)
	require.Len(t, variants[0].Sizes, 1)
	require.Equal(t, 3, variants[0].Sizes[0].Available)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := catalog.NewService(nil)
	require.Error(t, err)
}

package addresses_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shirtforge-backend/internal/addresses"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
)

func TestEnsureOwned(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := addresses.NewService(addresses.NewRepository(conn), dbtest.Client(conn))
	require.NoError(t, err)

	owner := uuid.New()
	addr := dbtest.SeedAddress(t, conn, owner)

	got, err := svc.EnsureOwned(context.Background(), nil, owner, addr.ID)
	require.NoError(t, err)
	require.Equal(t, addr.ID, got.ID)

	_, err = svc.EnsureOwned(context.Background(), nil, uuid.New(), addr.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAddressNotOwned))

	_, err = svc.EnsureOwned(context.Background(), nil, owner, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAddressNotOwned))
}

func TestCreateDefaultReplacesPrevious(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := addresses.NewService(addresses.NewRepository(conn), dbtest.Client(conn))
	require.NoError(t, err)
	user := uuid.New()

	first, err := svc.Create(context.Background(), user, addresses.CreateInput{Line1: "1 Mill St", City: "Erode", State: "TN", PostalCode: "638001", IsDefault: true})
	require.NoError(t, err)
	require.Equal(t, "IN", first.Country)

	second, err := svc.Create(context.Background(), user, addresses.CreateInput{Line1: "2 Loom St", City: "Erode", State: "TN", PostalCode: "638002", IsDefault: true})
	require.NoError(t, err)

	rows, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, second.ID, rows[0].ID)
	require.True(t, rows[0].IsDefault)
	require.False(t, rows[1].IsDefault)
}

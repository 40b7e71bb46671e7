//go:build postgres

package inventory_test

import (
	"testing"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/dbtest"
)

// Run with: SHIRTFORGE_TEST_DATABASE_URL=postgres://... go test -tags postgres ./internal/inventory/
func TestConcurrentReservationsNeverOversellOnPostgres(t *testing.T) {
	assertNoOversell(t, newFixtureOn(t, dbtest.OpenPostgres(t)))
}

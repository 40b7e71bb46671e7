package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/shirtforge-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestStockMigrationEnforcesReservationBounds(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock",
		"CHECK (quantity_reserved >= 0 AND quantity_reserved <= quantity_in_stock)",
		"CONSTRAINT idx_variant_sizes_variant_size UNIQUE (variant_id, size_id)",
		"DROP TABLE IF EXISTS stock",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCartMigrationHasSingleActiveCartIndex(t *testing.T) {
	content := readMigration(t, "*_create_addresses_and_carts.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active_per_user ON carts (user_id) WHERE status = 'active'",
		"CONSTRAINT idx_cart_items_cart_variant_size UNIQUE (cart_id, variant_size_id)",
		"CHECK (quantity >= 1)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsMigrationGuardsDuplicateSuccess(t *testing.T) {
	content := readMigration(t, "*_create_orders_and_payments.sql")

	checks := []string{
		"ON payments (gateway_payment_id) WHERE payment_status = 'success'",
		"unit_price numeric(12,2) NOT NULL",
		"'pending', 'confirmed', 'processing', 'ready_for_dispatch', 'dispatched', 'delivered', 'cancelled'",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected migrations to validate: %v", err)
	}
}

package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shirtforge-backend/pkg/migrate"
)

// PostgresURLEnv names the database used by OpenPostgres.
const PostgresURLEnv = "SHIRTFORGE_TEST_DATABASE_URL"

// OpenPostgres returns a connection to a fresh schema on the Postgres named by
// SHIRTFORGE_TEST_DATABASE_URL, migrated with the goose files. The pool allows
// several connections so row locks are actually contended. The test is skipped
// when the variable is unset.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(PostgresURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}
	ctx := context.Background()

	admin, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	schema := "ledger_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.WithContext(ctx).Exec("CREATE SCHEMA " + schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := gorm.Open(postgres.Open(dsn+sep+"search_path="+schema), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open schema: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Run(ctx, sqlDB, "postgres", migrationsDir(t), "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func migrationsDir(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("locate migrations")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrate", "migrations")
}

// Package dbtest opens throwaway sqlite databases with the full ledger schema.
package dbtest

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shirtforge-backend/pkg/db"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	"github.com/angelmondragon/shirtforge-backend/pkg/migrate"
)

// Open returns a migrated in-memory database private to the test. The pool is
// pinned to one connection so concurrent callers serialize like row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// Client wraps conn in the transaction runner services expect.
func Client(conn *gorm.DB) *db.Client {
	return db.NewFromConn(conn)
}

// Unit describes a purchasable variant-size fixture.
type Unit struct {
	SKU       string
	SizeName  string
	BasePrice string
	Markup    string
	InStock   int
	Reserved  int
	Threshold int
}

// SeedUnit inserts a variant, size, variant-size and stock row.
func SeedUnit(t testing.TB, conn *gorm.DB, u Unit) *models.VariantSize {
	t.Helper()
	if u.SKU == "" {
		u.SKU = "SKU-" + uuid.NewString()[:8]
	}
	if u.SizeName == "" {
		u.SizeName = "M-" + uuid.NewString()[:4]
	}
	if u.BasePrice == "" {
		u.BasePrice = "100.00"
	}
	if u.Markup == "" {
		u.Markup = "0"
	}
	if u.Threshold == 0 {
		u.Threshold = 10
	}

	size := &models.Size{Name: u.SizeName, MarkupPercentage: decimal.RequireFromString(u.Markup)}
	variant := &models.ProductVariant{SKU: u.SKU, Name: u.SKU, BasePrice: decimal.RequireFromString(u.BasePrice), IsActive: true}
	mustCreate(t, conn, size)
	mustCreate(t, conn, variant)

	vs := &models.VariantSize{VariantID: variant.ID, SizeID: size.ID}
	mustCreate(t, conn, vs)
	stock := &models.Stock{
		VariantSizeID:     vs.ID,
		QuantityInStock:   u.InStock,
		QuantityReserved:  u.Reserved,
		LowStockThreshold: u.Threshold,
	}
	mustCreate(t, conn, stock)

	vs.Variant = variant
	vs.Size = size
	vs.Stock = stock
	return vs
}

// SeedAddress inserts a delivery address for userID.
func SeedAddress(t testing.TB, conn *gorm.DB, userID uuid.UUID) *models.Address {
	t.Helper()
	addr := &models.Address{
		UserID:     userID,
		Line1:      "12 Textile Market Rd",
		City:       "Tiruppur",
		State:      "TN",
		PostalCode: "641604",
		Country:    "IN",
	}
	mustCreate(t, conn, addr)
	return addr
}

// Line is one ordered unit for SeedOrder.
type Line struct {
	Unit     *models.VariantSize
	Quantity int
}

// SeedOrder inserts an order in the given status, bypassing checkout.
func SeedOrder(t testing.TB, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, lines ...Line) *models.Order {
	t.Helper()
	addr := SeedAddress(t, conn, userID)
	order := &models.Order{
		OrderNumber:       "SF-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		UserID:            userID,
		DeliveryAddressID: addr.ID,
		Status:            status,
	}
	for _, line := range lines {
		price := decimal.Zero
		if line.Unit.Variant != nil {
			price = line.Unit.Variant.BasePrice
		}
		order.Items = append(order.Items, models.OrderItem{
			VariantSizeID: line.Unit.ID,
			SKU:           "SKU",
			SizeName:      "M",
			Quantity:      line.Quantity,
			UnitPrice:     price,
		})
	}
	mustCreate(t, conn, order)
	return order
}

// LoadStock re-reads the stock row for vsID.
func LoadStock(t testing.TB, conn *gorm.DB, vsID uuid.UUID) models.Stock {
	t.Helper()
	var stock models.Stock
	if err := conn.WithContext(context.Background()).First(&stock, "variant_size_id = ?", vsID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return stock
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}

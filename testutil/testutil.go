// Package testutil builds throwaway databases shaped like the host shop's schema.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bom-analytics-helper/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TablePrefix = "wp_"

var dbSeq atomic.Int64

type options struct {
	withoutBOMTable    bool
	withoutLookupTable bool
}

// Option tweaks the schema created by SetupTestDB.
type Option func(*options)

// WithoutBOMTable leaves out the inventory plugin's BOM table, as on a shop
// where the plugin is not installed.
func WithoutBOMTable() Option { return func(o *options) { o.withoutBOMTable = true } }

// WithoutLookupTable leaves out the analytics lookup table.
func WithoutLookupTable() Option { return func(o *options) { o.withoutLookupTable = true } }

// Tables returns the table names used by SetupTestDB.
func Tables() models.Tables { return models.NewTables(TablePrefix) }

// SetupTestDB opens an isolated in-memory SQLite database and creates the host tables.
func SetupTestDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tb := Tables()
	migrations := []struct {
		table string
		model interface{}
	}{
		{tb.Orders(), &models.Order{}},
		{tb.OrderItems(), &models.OrderItem{}},
		{tb.ProductData(), &models.ProductData{}},
		{tb.Posts(), &models.Post{}},
		{tb.TermRelationships(), &models.TermRelationship{}},
		{tb.TermTaxonomy(), &models.TermTaxonomy{}},
		{tb.Terms(), &models.Term{}},
		{tb.Options(), &models.Option{}},
	}
	if !o.withoutBOMTable {
		migrations = append(migrations, struct {
			table string
			model interface{}
		}{tb.OrderBOMs(), &models.OrderBOM{}})
	}
	if !o.withoutLookupTable {
		migrations = append(migrations, struct {
			table string
			model interface{}
		}{tb.ProductLookup(), &models.ProductLookup{}})
	}
	for _, m := range migrations {
		if err := db.Table(m.table).AutoMigrate(m.model); err != nil {
			t.Fatalf("Failed to migrate %s: %v", m.table, err)
		}
	}
	return db
}

// Component is a BOM component consumed by an order line.
type Component struct {
	BOMID uint64
	Qty   float64
}

// Line is an order line with its BOM components.
type Line struct {
	ItemID     uint64
	Components []Component
}

// SeedProduct creates a published product post, optionally flagged as a BOM
// component, with the given product type slug.
func SeedProduct(t *testing.T, db *gorm.DB, id uint64, title string, isBOM bool, productType string) {
	t.Helper()
	tb := Tables()
	mustCreate(t, db, tb.Posts(), &models.Post{ID: id, PostTitle: title, PostType: models.PostTypeProduct, PostStatus: "publish"})
	mustCreate(t, db, tb.ProductData(), &models.ProductData{ProductID: id, IsBOM: isBOM})
	if productType == "" {
		return
	}
	mustCreate(t, db, tb.Terms(), &models.Term{TermID: id, Name: productType, Slug: productType})
	mustCreate(t, db, tb.TermTaxonomy(), &models.TermTaxonomy{TermTaxonomyID: id, TermID: id, Taxonomy: models.TaxonomyProductType})
	mustCreate(t, db, tb.TermRelationships(), &models.TermRelationship{ObjectID: id, TermTaxonomyID: id})
}

// SeedOrder creates an order with its line items and BOM lines.
func SeedOrder(t *testing.T, db *gorm.DB, orderID, customerID uint64, created time.Time, lines ...Line) {
	t.Helper()
	tb := Tables()
	mustCreate(t, db, tb.Orders(), &models.Order{
		ID:             orderID,
		Type:           models.OrderTypeShopOrder,
		Status:         "wc-processing",
		CustomerID:     customerID,
		DateCreatedGMT: &created,
	})
	for _, line := range lines {
		mustCreate(t, db, tb.OrderItems(), &models.OrderItem{
			OrderItemID:   line.ItemID,
			OrderItemName: fmt.Sprintf("Item %d", line.ItemID),
			OrderItemType: models.OrderItemTypeLine,
			OrderID:       orderID,
		})
		for _, c := range line.Components {
			if db.Migrator().HasTable(tb.OrderBOMs()) {
				mustCreate(t, db, tb.OrderBOMs(), &models.OrderBOM{
					OrderItemID: line.ItemID,
					BOMID:       c.BOMID,
					BOMType:     "product-part",
					Qty:         c.Qty,
					OrderType:   models.BOMOrderTypeShop,
				})
			}
		}
	}
}

// LookupRows returns every analytics row of an order, ordered by line id.
func LookupRows(t *testing.T, db *gorm.DB, orderID uint64) []models.ProductLookup {
	t.Helper()
	var rows []models.ProductLookup
	if err := db.Table(Tables().ProductLookup()).Where("order_id = ?", orderID).Order("order_item_id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("Failed to load lookup rows: %v", err)
	}
	return rows
}

// InsertLookup writes a raw analytics row.
func InsertLookup(t *testing.T, db *gorm.DB, row models.ProductLookup) {
	t.Helper()
	mustCreate(t, db, Tables().ProductLookup(), &row)
}

func mustCreate(t *testing.T, db *gorm.DB, table string, value interface{}) {
	t.Helper()
	if err := db.Table(table).Create(value).Error; err != nil {
		t.Fatalf("Failed to seed %s: %v", table, err)
	}
}

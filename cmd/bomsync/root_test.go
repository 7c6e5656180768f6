package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/middleware"
	"bom-analytics-helper/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var created = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func run(t *testing.T, db *gorm.DB, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(db)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seededDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedProduct(t, db, 55, "Steel bolt", true, "product-part")
	testutil.SeedOrder(t, db, 10, 0, created,
		testutil.Line{ItemID: 100, Components: []testutil.Component{{BOMID: 55, Qty: 2}}})
	testutil.SeedOrder(t, db, 11, 0, created.Add(time.Hour),
		testutil.Line{ItemID: 110, Components: []testutil.Component{{BOMID: 55, Qty: 1}}})
	return db
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"backfill", "batch", "sync", "remove", "dedupe", "clear", "status", "token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	backfill, _, _ := cmd.Find([]string{"backfill"})
	require.NotNil(t, backfill.Flags().Lookup("force"))
	batch, _, _ := cmd.Find([]string{"batch"})
	assert.Equal(t, "50", batch.Flags().Lookup("limit").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, testutil.SetupTestDB(t), "status", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestBackfillThenStatus(t *testing.T) {
	db := seededDB(t)

	out, err := run(t, db, "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "Backfill completed. Processed 2 orders with 0 errors.")
	assert.Len(t, testutil.LookupRows(t, db, 10), 1)
	assert.Len(t, testutil.LookupRows(t, db, 11), 1)

	out, err = run(t, db, "status", "--format", "json")
	require.NoError(t, err)
	var dashboard struct {
		Sync struct {
			TotalBOMs   int64   `json:"total_boms"`
			SyncedBOMs  int64   `json:"synced_boms"`
			SyncPercent float64 `json:"sync_percent"`
		} `json:"sync"`
		Backfill struct {
			Status string `json:"status"`
		} `json:"backfill"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &dashboard))
	assert.Equal(t, int64(2), dashboard.Sync.TotalBOMs)
	assert.Equal(t, int64(2), dashboard.Sync.SyncedBOMs)
	assert.Equal(t, 100.0, dashboard.Sync.SyncPercent)
	assert.Equal(t, "completed", dashboard.Backfill.Status)

	out, err = run(t, db, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "[ OK ] Sync Coverage: 100% of BOMs are synced")
	assert.Contains(t, out, "Backfill: Completed, 2 / 2 orders (100%), 0 errors")
}

func TestSyncRemoveAndClear(t *testing.T) {
	db := seededDB(t)

	out, err := run(t, db, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced BOMs for order #11")

	out, err = run(t, db, "sync", "--order-id", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced BOMs for order #10")

	out, err = run(t, db, "remove", "--order-id", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed BOM analytics for order #10")
	assert.Empty(t, testutil.LookupRows(t, db, 10))

	_, err = run(t, db, "remove")
	require.Error(t, err)

	out, err = run(t, db, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 BOM analytics records.")

	out, err = run(t, db, "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 duplicate BOM records.")
}

func TestBatchDoesNotTouchProgress(t *testing.T) {
	db := seededDB(t)

	out, err := run(t, db, "batch", "--offset", "1", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 orders with 0 errors.")
	assert.Len(t, testutil.LookupRows(t, db, 10), 1)
	assert.Empty(t, testutil.LookupRows(t, db, 11))

	_, err = run(t, db, "batch", "--limit", "0")
	require.Error(t, err)
}

func TestBatchReportsFailedOrders(t *testing.T) {
	db := seededDB(t)
	// Component 99 has no product, so order 12 syncs nothing.
	testutil.SeedOrder(t, db, 12, 0, created.Add(2*time.Hour),
		testutil.Line{ItemID: 120, Components: []testutil.Component{{BOMID: 99, Qty: 1}}})

	out, err := run(t, db, "batch")
	require.ErrorIs(t, err, errOrdersFailed)
	assert.Contains(t, out, "Processed 2 orders with 1 errors.")
}

func TestTokenCommand(t *testing.T) {
	prev := config.App
	cfg := *config.Defaults()
	cfg.JWTSecret = "cli-secret"
	config.App = &cfg
	t.Cleanup(func() { config.App = prev })

	out, err := run(t, testutil.SetupTestDB(t), "token", "--user", "7", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := middleware.ParseToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
	assert.True(t, claims.Can(middleware.CapabilityManageShop))

	_, err = run(t, testutil.SetupTestDB(t), "token")
	require.Error(t, err)
}

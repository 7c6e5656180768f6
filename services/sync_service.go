package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoOrders = errors.New("no orders found")
)

// SyncStatusStatuses are the order statuses whose change triggers a resync.
var SyncStatusStatuses = []string{"processing", "completed", "cancelled", "refunded"}

const duplicateDeleteChunk = 500

type SyncStatus struct {
	TotalBOMs   int64   `json:"total_boms"`
	SyncedBOMs  int64   `json:"synced_boms"`
	HooksActive bool    `json:"hooks_active"`
	SyncPercent float64 `json:"sync_percent"`
}

type DuplicateCleanupResult struct {
	Success bool   `json:"success"`
	Removed int64  `json:"removed"`
	Message string `json:"message"`
}

// SyncService mirrors BOM consumption into the analytics lookup table.
type SyncService struct {
	db     *gorm.DB
	tables models.Tables
	hooks  *Hooks
	log    *zap.Logger
	now    func() time.Time
}

// NewSyncService builds the service and, when hooks is non-nil, registers the
// order-change handlers and the product-type filter on it.
func NewSyncService(db *gorm.DB, hooks *Hooks) *SyncService {
	if db == nil {
		db = config.DB
	}
	s := &SyncService{
		db:     db,
		tables: models.NewTables(config.App.TablePrefix),
		hooks:  hooks,
		log:    config.Logger.Named("sync"),
		now:    time.Now,
	}
	if hooks != nil {
		s.registerHooks(hooks)
	}
	return s
}

func (s *SyncService) registerHooks(h *Hooks) {
	h.AddFilter(FilterExcludedProductTypes, IncludeProductPartsInAnalytics)

	h.AddAction(HookPODecreaseStock, s.syncOrderBOMs)
	h.AddAction(HookPOIncreaseStock, s.syncOrderBOMs)
	h.AddAction(HookSavedOrderItems, s.syncOrderBOMs)
	h.AddAction(HookPaymentComplete, s.syncOrderBOMs)
	h.AddAction(HookOrderStatusChanged, s.syncOrderBOMsOnStatusChange)
}

func (s *SyncService) syncOrderBOMs(ctx context.Context, ev Event) error {
	if ev.OrderID == 0 {
		return nil
	}
	_, err := s.SyncBOMToAnalytics(ctx, ev.OrderID, false)
	return err
}

func (s *SyncService) syncOrderBOMsOnStatusChange(ctx context.Context, ev Event) error {
	if !ShouldSyncOnStatus(ev.NewStatus) {
		return nil
	}
	return s.syncOrderBOMs(ctx, ev)
}

// ShouldSyncOnStatus reports whether a transition into status affects stock.
// The host's "wc-" prefix is accepted.
func ShouldSyncOnStatus(status string) bool {
	if len(status) > 3 && status[:3] == "wc-" {
		status = status[3:]
	}
	for _, s := range SyncStatusStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IncludeProductPartsInAnalytics removes the BOM product types from the
// analytics exclusion list.
func IncludeProductPartsInAnalytics(excluded []string) []string {
	out := make([]string, 0, len(excluded))
	for _, t := range excluded {
		isBOM := false
		for _, b := range models.BOMProductTypes {
			if t == b {
				isBOM = true
				break
			}
		}
		if !isBOM {
			out = append(out, t)
		}
	}
	return out
}

// IntegrationAvailable reports whether the inventory plugin's BOM table exists.
func (s *SyncService) IntegrationAvailable(ctx context.Context) bool {
	return s.db.WithContext(ctx).Migrator().HasTable(s.tables.OrderBOMs())
}

// SyncBOMToAnalytics writes one lookup row per BOM component of every line of
// the order. It returns false without error when the integration is missing,
// the order does not exist or has no lines, or no row could be written.
func (s *SyncService) SyncBOMToAnalytics(ctx context.Context, orderID uint64, isBackfill bool) (bool, error) {
	ctx, span := tracer.Start(ctx, "sync.order", trace.WithAttributes(
		attribute.Int64("order_id", int64(orderID)),
		attribute.Bool("backfill", isBackfill),
	))
	defer span.End()

	if !s.IntegrationAvailable(ctx) {
		return false, nil
	}

	db := s.db.WithContext(ctx)

	var order models.Order
	if err := db.Table(s.tables.Orders()).Where("id = ?", orderID).Take(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load order %d: %w", orderID, err)
	}

	var items []models.OrderItem
	if err := db.Table(s.tables.OrderItems()).
		Where("order_id = ? AND order_item_type = ?", orderID, models.OrderItemTypeLine).
		Order("order_item_id ASC").
		Find(&items).Error; err != nil {
		return false, fmt.Errorf("load items of order %d: %w", orderID, err)
	}
	if len(items) == 0 {
		return false, nil
	}

	synced := 0
	for _, item := range items {
		var boms []models.OrderBOM
		if err := db.Table(s.tables.OrderBOMs()).
			Where("order_item_id = ? AND order_type = ?", item.OrderItemID, models.BOMOrderTypeShop).
			Order("id ASC").
			Find(&boms).Error; err != nil {
			return synced > 0, fmt.Errorf("load bom lines of item %d: %w", item.OrderItemID, err)
		}

		for _, bom := range boms {
			ok, err := s.syncSingleBOMItem(ctx, &order, item.OrderItemID, bom)
			if err != nil {
				if errors.Is(err, models.ErrSyntheticKeyOverflow) {
					s.log.Warn("skipping bom line with out-of-range ids",
						zap.Uint64("order_id", orderID),
						zap.Uint64("order_item_id", item.OrderItemID),
						zap.Uint64("bom_id", bom.BOMID))
					continue
				}
				return synced > 0, err
			}
			if ok {
				synced++
			}
		}
	}

	span.SetAttributes(attribute.Int("rows_written", synced))
	return synced > 0, nil
}

func (s *SyncService) syncSingleBOMItem(ctx context.Context, order *models.Order, itemID uint64, bom models.OrderBOM) (bool, error) {
	syntheticID, err := models.SyntheticItemID(itemID, bom.BOMID)
	if err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)
	lookup := s.tables.ProductLookup()

	var existing int64
	if err := db.Table(lookup).
		Where("order_id = ? AND product_id = ? AND order_item_id = ?", order.ID, bom.BOMID, syntheticID).
		Count(&existing).Error; err != nil {
		return false, fmt.Errorf("check lookup row %d: %w", syntheticID, err)
	}

	// Rows for the same order and component under any other line id are stale;
	// the fresh insert below replaces them.
	if existing == 0 {
		if err := db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE order_id = ? AND product_id = ?", lookup),
			order.ID, bom.BOMID,
		).Error; err != nil {
			return false, fmt.Errorf("delete stale lookup rows: %w", err)
		}
	}

	var productCount int64
	if err := db.Table(s.tables.Posts()).
		Where("ID = ? AND post_type IN ?", bom.BOMID, []string{models.PostTypeProduct, models.PostTypeProductVariation}).
		Count(&productCount).Error; err != nil {
		return false, fmt.Errorf("check product %d: %w", bom.BOMID, err)
	}
	if productCount == 0 {
		return false, nil
	}

	created := s.now()
	if order.DateCreatedGMT != nil && !order.DateCreatedGMT.IsZero() {
		created = *order.DateCreatedGMT
	}

	if existing > 0 {
		err = db.Table(lookup).
			Where("order_id = ? AND product_id = ? AND order_item_id = ?", order.ID, bom.BOMID, syntheticID).
			Updates(map[string]interface{}{
				"variation_id":          0,
				"customer_id":           order.CustomerID,
				"product_qty":           bom.Qty,
				"product_net_revenue":   0,
				"product_gross_revenue": 0,
				"date_created":          created,
				"coupon_amount":         0,
				"tax_amount":            0,
				"shipping_amount":       0,
				"shipping_tax_amount":   0,
			}).Error
	} else {
		err = db.Table(lookup).Create(&models.ProductLookup{
			OrderItemID: syntheticID,
			OrderID:     order.ID,
			ProductID:   bom.BOMID,
			CustomerID:  order.CustomerID,
			DateCreated: created,
			ProductQty:  bom.Qty,
		}).Error
	}

	if hookErr := s.hooks.DoAction(ctx, Event{
		Name:       HookBOMSynced,
		OrderID:    order.ID,
		ProductIDs: []uint64{bom.BOMID},
		OK:         err == nil,
	}); hookErr != nil {
		s.log.Warn("bom_synced handler failed", zap.Error(hookErr))
	}

	if err != nil {
		return false, fmt.Errorf("write lookup row %d: %w", syntheticID, err)
	}
	return true, nil
}

// RemoveBOMFromAnalytics deletes the order's lookup rows for its BOM components.
func (s *SyncService) RemoveBOMFromAnalytics(ctx context.Context, orderID uint64) (bool, error) {
	if !s.IntegrationAvailable(ctx) {
		return false, nil
	}
	db := s.db.WithContext(ctx)

	var productIDs []uint64
	if err := db.Raw(fmt.Sprintf(
		`SELECT DISTINCT aob.bom_id FROM %s aob
		INNER JOIN %s oi ON aob.order_item_id = oi.order_item_id
		WHERE oi.order_id = ?`,
		s.tables.OrderBOMs(), s.tables.OrderItems(),
	), orderID).Scan(&productIDs).Error; err != nil {
		return false, fmt.Errorf("load bom products of order %d: %w", orderID, err)
	}
	if len(productIDs) == 0 {
		return false, nil
	}

	res := db.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE order_id = ? AND product_id IN ?", s.tables.ProductLookup()),
		orderID, productIDs,
	)

	if hookErr := s.hooks.DoAction(ctx, Event{
		Name:       HookBOMRemoved,
		OrderID:    orderID,
		ProductIDs: productIDs,
		OK:         res.Error == nil,
	}); hookErr != nil {
		s.log.Warn("bom_removed handler failed", zap.Error(hookErr))
	}

	if res.Error != nil {
		return false, fmt.Errorf("delete lookup rows of order %d: %w", orderID, res.Error)
	}
	return true, nil
}

// RemoveDuplicates keeps, for each (order, BOM product) pair with several
// lookup rows, only the row with the lowest line id. The next sync overwrites it.
func (s *SyncService) RemoveDuplicates(ctx context.Context) (*DuplicateCleanupResult, error) {
	db := s.db.WithContext(ctx)
	lookup := s.tables.ProductLookup()
	productData := s.tables.ProductData()

	var ids []uint64
	if err := db.Raw(fmt.Sprintf(
		`SELECT wpl1.order_item_id FROM %[1]s wpl1
		INNER JOIN %[2]s apd ON wpl1.product_id = apd.product_id
		INNER JOIN (
			SELECT wpl2.order_id, wpl2.product_id, MIN(wpl2.order_item_id) AS min_item_id
			FROM %[1]s wpl2
			INNER JOIN %[2]s apd2 ON wpl2.product_id = apd2.product_id
			WHERE apd2.is_bom = 1
			GROUP BY wpl2.order_id, wpl2.product_id
			HAVING COUNT(*) > 1
		) dup ON wpl1.order_id = dup.order_id
			AND wpl1.product_id = dup.product_id
			AND wpl1.order_item_id > dup.min_item_id
		WHERE apd.is_bom = 1`,
		lookup, productData,
	)).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("find duplicate lookup rows: %w", err)
	}

	var removed int64
	for start := 0; start < len(ids); start += duplicateDeleteChunk {
		end := start + duplicateDeleteChunk
		if end > len(ids) {
			end = len(ids)
		}
		res := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE order_item_id IN ?", lookup), ids[start:end])
		if res.Error != nil {
			return nil, fmt.Errorf("delete duplicate lookup rows: %w", res.Error)
		}
		removed += res.RowsAffected
	}

	return &DuplicateCleanupResult{
		Success: true,
		Removed: removed,
		Message: fmt.Sprintf("Removed %d duplicate BOM records.", removed),
	}, nil
}

// GetSyncStatus compares BOM lines against synced lookup rows.
func (s *SyncService) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	db := s.db.WithContext(ctx)
	status := &SyncStatus{HooksActive: s.hooks.HasFilter(FilterExcludedProductTypes)}

	if s.IntegrationAvailable(ctx) {
		if err := db.Raw(fmt.Sprintf(
			"SELECT COUNT(*) FROM (SELECT DISTINCT order_item_id, bom_id FROM %s) t",
			s.tables.OrderBOMs(),
		)).Scan(&status.TotalBOMs).Error; err != nil {
			return nil, fmt.Errorf("count bom lines: %w", err)
		}
	}

	if db.Migrator().HasTable(s.tables.ProductLookup()) {
		if err := db.Raw(fmt.Sprintf(
			`SELECT COUNT(*) FROM (
				SELECT DISTINCT wpl.order_id, wpl.product_id, wpl.order_item_id
				FROM %s wpl
				INNER JOIN %s apd ON wpl.product_id = apd.product_id
				WHERE apd.is_bom = 1
			) t`,
			s.tables.ProductLookup(), s.tables.ProductData(),
		)).Scan(&status.SyncedBOMs).Error; err != nil {
			return nil, fmt.Errorf("count synced lookup rows: %w", err)
		}
	}

	status.SyncPercent = CoveragePercent(status.SyncedBOMs, status.TotalBOMs)
	return status, nil
}

// CoveragePercent is synced/total as a percentage with two decimals, capped at 100.
func CoveragePercent(synced, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := math.Round(float64(synced)/float64(total)*10000) / 100
	return math.Min(100, pct)
}

// LatestOrderID returns the most recently created shop order.
func (s *SyncService) LatestOrderID(ctx context.Context) (uint64, error) {
	var ids []uint64
	if err := s.db.WithContext(ctx).Table(s.tables.Orders()).
		Where("type = ?", models.OrderTypeShopOrder).
		Order("date_created_gmt DESC").
		Order("id DESC").
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("load latest order: %w", err)
	}
	if len(ids) == 0 {
		return 0, ErrNoOrders
	}
	return ids[0], nil
}

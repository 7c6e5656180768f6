package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/models"
	"bom-analytics-helper/utils"

	"gorm.io/gorm"
)

// CoverageHealthyPercent is the sync coverage at which the coverage check passes.
const CoverageHealthyPercent = 80.0

const recentBOMLimit = 10

type HealthCheck struct {
	Label   string `json:"label"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// RecentBOM is a recently synced BOM row shown on the dashboard.
type RecentBOM struct {
	ProductID   uint64    `json:"product_id"`
	OrderID     uint64    `json:"order_id"`
	ProductQty  float64   `json:"product_qty"`
	DateCreated time.Time `json:"date_created"`
	ProductName string    `json:"product_name"`
	ProductType string    `json:"product_type"`
}

// Dashboard is everything the status page renders.
type Dashboard struct {
	Checks     []HealthCheck            `json:"checks"`
	Sync       *SyncStatus              `json:"sync"`
	Backfill   *models.BackfillProgress `json:"backfill"`
	RecentBOMs []RecentBOM              `json:"recent_boms"`
}

type StatusService struct {
	db       *gorm.DB
	tables   models.Tables
	sync     *SyncService
	backfill *BackfillService
}

func NewStatusService(db *gorm.DB, sync *SyncService, backfill *BackfillService) *StatusService {
	if db == nil {
		db = config.DB
	}
	if sync == nil {
		sync = NewSyncService(db, nil)
	}
	if backfill == nil {
		backfill = NewBackfillService(db, sync)
	}
	return &StatusService{
		db:       db,
		tables:   models.NewTables(config.App.TablePrefix),
		sync:     sync,
		backfill: backfill,
	}
}

// Dashboard collects the status page data.
func (s *StatusService) Dashboard(ctx context.Context) (*Dashboard, error) {
	syncStatus, err := s.sync.GetSyncStatus(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.backfill.GetProgress(ctx)
	if err != nil {
		return nil, err
	}
	checks, err := s.runHealthChecks(ctx, syncStatus)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentSyncedBOMs(ctx, recentBOMLimit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Checks: checks, Sync: syncStatus, Backfill: progress, RecentBOMs: recent}, nil
}

// RunHealthChecks reports the integration health. The recent-order check is
// present only when both tables exist and at least one order does.
func (s *StatusService) RunHealthChecks(ctx context.Context) ([]HealthCheck, error) {
	syncStatus, err := s.sync.GetSyncStatus(ctx)
	if err != nil {
		return nil, err
	}
	return s.runHealthChecks(ctx, syncStatus)
}

func (s *StatusService) runHealthChecks(ctx context.Context, syncStatus *SyncStatus) ([]HealthCheck, error) {
	db := s.db.WithContext(ctx)
	checks := make([]HealthCheck, 0, 5)

	registered := syncStatus.HooksActive
	checks = append(checks, HealthCheck{
		Label:   "Product Types Registered",
		Status:  registered,
		Message: pick(registered, "Product parts are registered with Analytics", "Product parts are NOT registered"),
	})

	lookupExists := db.Migrator().HasTable(s.tables.ProductLookup())
	checks = append(checks, HealthCheck{
		Label:   "Analytics Tables Exist",
		Status:  lookupExists,
		Message: pick(lookupExists, "WooCommerce Analytics tables found", "Analytics tables missing - please enable WooCommerce Analytics"),
	})

	bomExists := db.Migrator().HasTable(s.tables.OrderBOMs())
	checks = append(checks, HealthCheck{
		Label:   "BOM Tables Exist",
		Status:  bomExists,
		Message: pick(bomExists, "ATUM BOM tables found", "BOM tables missing"),
	})

	if lookupExists && bomExists {
		check, err := s.recentOrderCheck(ctx)
		if err != nil {
			return nil, err
		}
		if check != nil {
			checks = append(checks, *check)
		}
	}

	checks = append(checks, HealthCheck{
		Label:   "Sync Coverage",
		Status:  syncStatus.SyncPercent >= CoverageHealthyPercent,
		Message: fmt.Sprintf("%s%% of BOMs are synced", utils.FormatPercent(syncStatus.SyncPercent)),
	})
	return checks, nil
}

func (s *StatusService) recentOrderCheck(ctx context.Context) (*HealthCheck, error) {
	orderID, err := s.sync.LatestOrderID(ctx)
	if err != nil {
		if errors.Is(err, ErrNoOrders) {
			return nil, nil
		}
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var bomLines, synced int64
	if err := db.Raw(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s aob
		INNER JOIN %s oi ON aob.order_item_id = oi.order_item_id
		WHERE oi.order_id = ?`,
		s.tables.OrderBOMs(), s.tables.OrderItems(),
	), orderID).Scan(&bomLines).Error; err != nil {
		return nil, fmt.Errorf("count bom lines of order %d: %w", orderID, err)
	}
	if err := db.Table(s.tables.ProductLookup()).Where("order_id = ?", orderID).Count(&synced).Error; err != nil {
		return nil, fmt.Errorf("count lookup rows of order %d: %w", orderID, err)
	}

	isSynced := bomLines > 0 && synced > 0
	msg := "Latest order has no BOMs"
	if bomLines > 0 {
		msg = pick(isSynced, "Latest order BOMs are synced", "Latest order BOMs are NOT synced")
	}
	return &HealthCheck{
		Label:   "Recent Orders Tracking",
		Status:  isSynced || bomLines == 0,
		Message: msg,
	}, nil
}

// RecentSyncedBOMs returns the newest lookup rows of BOM-flagged products.
func (s *StatusService) RecentSyncedBOMs(ctx context.Context, limit int) ([]RecentBOM, error) {
	if limit <= 0 {
		limit = recentBOMLimit
	}
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(s.tables.ProductLookup()) {
		return nil, nil
	}

	var rows []RecentBOM
	err := db.Raw(fmt.Sprintf(
		`SELECT
			wpl.product_id,
			wpl.order_id,
			wpl.product_qty,
			wpl.date_created,
			p.post_title AS product_name,
			CASE
				WHEN p.post_type = ? THEN 'product-part-variation'
				ELSE COALESCE(t.slug, 'product-part')
			END AS product_type
		FROM %s wpl
		INNER JOIN %s p ON wpl.product_id = p.ID
		INNER JOIN %s apd ON wpl.product_id = apd.product_id
		LEFT JOIN (
			SELECT tr.object_id, MIN(t.slug) AS slug
			FROM %s tr
			INNER JOIN %s tt ON tr.term_taxonomy_id = tt.term_taxonomy_id
			INNER JOIN %s t ON tt.term_id = t.term_id
			WHERE tt.taxonomy = ?
			GROUP BY tr.object_id
		) t ON p.ID = t.object_id
		WHERE apd.is_bom = 1
		ORDER BY wpl.date_created DESC, wpl.order_item_id DESC
		LIMIT ?`,
		s.tables.ProductLookup(), s.tables.Posts(), s.tables.ProductData(),
		s.tables.TermRelationships(), s.tables.TermTaxonomy(), s.tables.Terms(),
	), models.PostTypeProductVariation, models.TaxonomyProductType, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load recent synced boms: %w", err)
	}
	return rows, nil
}

func pick(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBackfillAlreadyRunning = errors.New("backfill already running")
)

// BatchSize is the number of orders synced per backfill batch.
const BatchSize = 50

// TimestampLayout is the layout of the progress timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

type BatchResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

type BackfillResult struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
	Message   string `json:"message"`
	RunID     string `json:"run_id,omitempty"`
}

type ClearResult struct {
	Success bool   `json:"success"`
	Deleted int64  `json:"deleted"`
	Message string `json:"message"`
}

// BackfillService replays every historical order with BOM lines through the
// sync service and keeps a persisted progress record.
type BackfillService struct {
	db        *gorm.DB
	tables    models.Tables
	sync      *SyncService
	store     *ProgressStore
	notifier  BackfillNotifier
	log       *zap.Logger
	batchSize int
	lockName  string
	now       func() time.Time

	// afterBatch runs after each persisted batch; tests use it to observe progress.
	afterBatch func(progress models.BackfillProgress)
}

func NewBackfillService(db *gorm.DB, sync *SyncService) *BackfillService {
	if db == nil {
		db = config.DB
	}
	if sync == nil {
		sync = NewSyncService(db, nil)
	}
	batch := config.App.BackfillBatchSize
	if batch <= 0 {
		batch = BatchSize
	}
	return &BackfillService{
		db:        db,
		tables:    models.NewTables(config.App.TablePrefix),
		sync:      sync,
		store:     NewProgressStore(db),
		log:       config.Logger.Named("backfill"),
		batchSize: batch,
		lockName:  config.App.BackfillLockName,
		now:       time.Now,
	}
}

// WithNotifier sets who is told when a run completes.
func (s *BackfillService) WithNotifier(n BackfillNotifier) *BackfillService {
	s.notifier = n
	return s
}

// WithLockName overrides the advisory lock name; empty disables the lock.
func (s *BackfillService) WithLockName(name string) *BackfillService {
	s.lockName = name
	return s
}

// BatchLimit is the configured number of orders per batch.
func (s *BackfillService) BatchLimit() int { return s.batchSize }

// GetTotalOrders counts the distinct orders that have at least one BOM line.
func (s *BackfillService) GetTotalOrders(ctx context.Context) (int, error) {
	if !s.sync.IntegrationAvailable(ctx) {
		return 0, nil
	}
	var total int64
	if err := s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COUNT(DISTINCT oi.order_id) FROM %s aob
		INNER JOIN %s oi ON aob.order_item_id = oi.order_item_id`,
		s.tables.OrderBOMs(), s.tables.OrderItems(),
	)).Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("count orders with bom lines: %w", err)
	}
	return int(total), nil
}

// GetProgress returns the stored progress. While idle the total is a live count.
func (s *BackfillService) GetProgress(ctx context.Context) (*models.BackfillProgress, error) {
	progress, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if progress.Status == models.BackfillStatusIdle {
		total, err := s.GetTotalOrders(ctx)
		if err != nil {
			return nil, err
		}
		progress.Total = total
	}
	progress.Recalculate()
	return progress, nil
}

func (s *BackfillService) ResetProgress(ctx context.Context) error {
	return s.store.Delete(ctx)
}

// StartBackfill runs the whole backfill synchronously. Unless force is set it
// refuses to start while the stored status is running; the returned progress
// is then the current one.
func (s *BackfillService) StartBackfill(ctx context.Context, force bool) (*BackfillResult, *models.BackfillProgress, error) {
	ctx, span := tracer.Start(ctx, "backfill.run", trace.WithAttributes(attribute.Bool("force", force)))
	defer span.End()

	release, err := s.acquireLock(ctx, s.lockName)
	if err != nil {
		if errors.Is(err, ErrBackfillAlreadyRunning) {
			current, loadErr := s.store.Load(ctx)
			if loadErr != nil {
				return nil, nil, loadErr
			}
			return nil, current, err
		}
		return nil, nil, err
	}
	if release != nil {
		defer func() {
			if relErr := release(); relErr != nil {
				s.log.Warn("failed to release backfill lock", zap.Error(relErr))
			}
		}()
	}

	current, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if current.IsRunning() && !force {
		current.Recalculate()
		return nil, current, ErrBackfillAlreadyRunning
	}

	total, err := s.GetTotalOrders(ctx)
	if err != nil {
		return nil, nil, err
	}

	started := s.timestamp()
	progress := &models.BackfillProgress{
		Total:   total,
		Status:  models.BackfillStatusRunning,
		Started: &started,
		RunID:   uuid.NewString(),
	}
	if err := s.store.Save(ctx, progress); err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("run_id", progress.RunID), attribute.Int("total", total))
	s.log.Info("backfill started",
		zap.String("run_id", progress.RunID),
		zap.Int("total", total),
		zap.Bool("force", force))

	if _, err := s.sync.RemoveDuplicates(ctx); err != nil {
		s.log.Warn("duplicate cleanup before backfill failed", zap.Error(err))
	}

	for offset := 0; offset < total; offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, progress, err
		}

		limit := s.batchSize
		if rest := total - offset; rest < limit {
			limit = rest
		}
		batch, err := s.BackfillBatch(ctx, offset, limit)
		if err != nil {
			return nil, progress, err
		}
		progress.Processed += batch.Processed
		progress.Errors += batch.Errors
		if err := s.store.Save(ctx, progress); err != nil {
			return nil, progress, err
		}
		if s.afterBatch != nil {
			s.afterBatch(*progress)
		}
	}

	completed := s.timestamp()
	progress.Status = models.BackfillStatusCompleted
	progress.Completed = &completed
	if err := s.store.Save(ctx, progress); err != nil {
		return nil, progress, err
	}

	s.log.Info("backfill completed",
		zap.String("run_id", progress.RunID),
		zap.Int("processed", progress.Processed),
		zap.Int("errors", progress.Errors))

	if s.notifier != nil {
		if err := s.notifier.BackfillCompleted(ctx, progress); err != nil {
			s.log.Warn("failed to send backfill notification", zap.Error(err))
		}
	}

	return &BackfillResult{
		Success:   true,
		Processed: progress.Processed,
		Errors:    progress.Errors,
		Message:   completionMessage(progress.Processed, progress.Errors),
		RunID:     progress.RunID,
	}, progress, nil
}

// completionMessage reports synced orders; failed orders are only in the error count.
func completionMessage(attempted, failed int) string {
	return fmt.Sprintf("Backfill completed. Processed %d orders with %d errors.", attempted-failed, failed)
}

// BackfillBatch syncs one page of orders, newest first. A failing page query
// counts the whole page as attempted and failed so the caller keeps advancing.
func (s *BackfillService) BackfillBatch(ctx context.Context, offset, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = s.batchSize
	}
	ctx, span := tracer.Start(ctx, "backfill.batch", trace.WithAttributes(
		attribute.Int("offset", offset),
		attribute.Int("limit", limit),
	))
	defer span.End()

	result := &BatchResult{}

	var orderIDs []uint64
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT DISTINCT oi.order_id FROM %s aob
		INNER JOIN %s oi ON aob.order_item_id = oi.order_item_id
		ORDER BY oi.order_id DESC
		LIMIT ? OFFSET ?`,
		s.tables.OrderBOMs(), s.tables.OrderItems(),
	), limit, offset).Scan(&orderIDs).Error
	if err != nil {
		s.log.Error("failed to load backfill page",
			zap.Int("offset", offset),
			zap.Int("limit", limit),
			zap.Error(err))
		span.RecordError(err)
		result.Processed = limit
		result.Errors = limit
		return result, nil
	}

	for _, orderID := range orderIDs {
		result.Processed++
		ok, err := s.sync.SyncBOMToAnalytics(ctx, orderID, true)
		if err != nil {
			result.Errors++
			s.log.Warn("backfill sync failed", zap.Uint64("order_id", orderID), zap.Error(err))
			continue
		}
		if !ok {
			result.Errors++
		}
	}

	span.SetAttributes(attribute.Int("processed", result.Processed), attribute.Int("errors", result.Errors))
	return result, nil
}

// ProcessScheduledBatch advances a running backfill by one batch at offset.
// It does nothing unless the stored status is running.
func (s *BackfillService) ProcessScheduledBatch(ctx context.Context, offset int) (*models.BackfillProgress, error) {
	progress, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !progress.IsRunning() {
		return progress, nil
	}

	batch, err := s.BackfillBatch(ctx, offset, s.batchSize)
	if err != nil {
		return nil, err
	}
	progress.Processed += batch.Processed
	progress.Errors += batch.Errors

	if progress.Processed >= progress.Total {
		completed := s.timestamp()
		progress.Status = models.BackfillStatusCompleted
		progress.Completed = &completed
	}
	if err := s.store.Save(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// ClearAnalytics deletes every lookup row of a BOM-flagged product and resets
// the backfill progress.
func (s *BackfillService) ClearAnalytics(ctx context.Context) (*ClearResult, error) {
	res := s.db.WithContext(ctx).Exec(fmt.Sprintf(
		"DELETE FROM %s WHERE product_id IN (SELECT product_id FROM %s WHERE is_bom = 1)",
		s.tables.ProductLookup(), s.tables.ProductData(),
	))
	if res.Error != nil {
		return nil, fmt.Errorf("clear bom analytics: %w", res.Error)
	}
	if err := s.ResetProgress(ctx); err != nil {
		return nil, err
	}

	s.log.Info("cleared bom analytics", zap.Int64("deleted", res.RowsAffected))
	return &ClearResult{
		Success: true,
		Deleted: res.RowsAffected,
		Message: fmt.Sprintf("Cleared %d BOM analytics records.", res.RowsAffected),
	}, nil
}

func (s *BackfillService) timestamp() string {
	return s.now().Format(TimestampLayout)
}

// acquireLock takes a MySQL named lock so two processes cannot run the
// backfill at once. Other dialects and an empty name skip the lock.
func (s *BackfillService) acquireLock(ctx context.Context, lockName string) (func() error, error) {
	if strings.TrimSpace(lockName) == "" || s.db.Dialector.Name() != "mysql" {
		return nil, nil
	}

	var ok int
	if err := s.db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&ok).Error; err != nil {
		return nil, fmt.Errorf("acquire backfill lock: %w", err)
	}
	if ok != 1 {
		return nil, ErrBackfillAlreadyRunning
	}

	return func() error {
		var released int
		return s.db.WithContext(ctx).Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
	}, nil
}

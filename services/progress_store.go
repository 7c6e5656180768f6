package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bom-analytics-helper/config"
	"bom-analytics-helper/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressOption is the option row holding the backfill progress.
const ProgressOption = "atum_pl_analytics_helper_backfill_progress"

// ProgressStore reads and writes the backfill progress record.
type ProgressStore struct {
	db     *gorm.DB
	tables models.Tables
}

func NewProgressStore(db *gorm.DB) *ProgressStore {
	if db == nil {
		db = config.DB
	}
	return &ProgressStore{db: db, tables: models.NewTables(config.App.TablePrefix)}
}

// Load returns the stored progress, or an idle record when none is stored or
// the stored value cannot be decoded.
func (s *ProgressStore) Load(ctx context.Context) (*models.BackfillProgress, error) {
	var opt models.Option
	err := s.db.WithContext(ctx).Table(s.tables.Options()).
		Where("option_name = ?", ProgressOption).
		Take(&opt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewBackfillProgress(), nil
		}
		return nil, fmt.Errorf("load backfill progress: %w", err)
	}

	progress := models.NewBackfillProgress()
	if err := json.Unmarshal([]byte(opt.OptionValue), progress); err != nil {
		return models.NewBackfillProgress(), nil
	}
	if progress.Status == "" {
		progress.Status = models.BackfillStatusIdle
	}
	return progress, nil
}

func (s *ProgressStore) Save(ctx context.Context, progress *models.BackfillProgress) error {
	if progress == nil {
		return errors.New("progress is nil")
	}
	progress.Recalculate()
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode backfill progress: %w", err)
	}

	opt := models.Option{OptionName: ProgressOption, OptionValue: string(raw), Autoload: "no"}
	if err := s.db.WithContext(ctx).Table(s.tables.Options()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "option_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_value"}),
	}).Create(&opt).Error; err != nil {
		return fmt.Errorf("save backfill progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) Delete(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE option_name = ?", s.tables.Options()),
		ProgressOption,
	).Error; err != nil {
		return fmt.Errorf("delete backfill progress: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"substance-journal/internal/model"
)

// CompanionRepository stores per-substance display metadata.
type CompanionRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

// Get returns nil when no companion exists for the substance.
func (r *CompanionRepository) Get(ctx context.Context, substanceName string) (*model.SubstanceCompanion, error) {
	c, err := first[model.SubstanceCompanion](r.db.WithContext(ctx).Where("substance_name = ?", substanceName))
	if err != nil {
		return nil, fmt.Errorf("find companion: %w", err)
	}
	return c, nil
}

func (r *CompanionRepository) List(ctx context.Context) ([]model.SubstanceCompanion, error) {
	var list []model.SubstanceCompanion
	if err := r.db.WithContext(ctx).Order("substance_name ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list companions: %w", err)
	}
	return list, nil
}

// UsedColors returns the colors already assigned to substances.
func (r *CompanionRepository) UsedColors(ctx context.Context) ([]model.AdaptiveColor, error) {
	var colors []model.AdaptiveColor
	if err := r.db.WithContext(ctx).Model(&model.SubstanceCompanion{}).Pluck("color", &colors).Error; err != nil {
		return nil, fmt.Errorf("list companion colors: %w", err)
	}
	return colors, nil
}

// Upsert inserts the companion or updates its color.
func (r *CompanionRepository) Upsert(ctx context.Context, c *model.SubstanceCompanion) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "substance_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"color"}),
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("upsert companion: %w", err)
	}
	r.changed(TableSubstanceCompanions)
	return nil
}

// CreateIfMissing keeps an existing companion untouched.
func (r *CompanionRepository) CreateIfMissing(ctx context.Context, c *model.SubstanceCompanion) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return fmt.Errorf("create companion: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.changed(TableSubstanceCompanions)
	}
	return nil
}

func (r *CompanionRepository) Delete(ctx context.Context, substanceName string) error {
	if err := r.db.WithContext(ctx).Where("substance_name = ?", substanceName).
		Delete(&model.SubstanceCompanion{}).Error; err != nil {
		return fmt.Errorf("delete companion: %w", err)
	}
	r.changed(TableSubstanceCompanions)
	return nil
}

// DeleteOrphaned removes companions no ingestion refers to.
func (r *CompanionRepository) DeleteOrphaned(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("substance_name NOT IN (?)", r.db.Model(&model.Ingestion{}).Distinct("substance_name")).
		Delete(&model.SubstanceCompanion{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete orphaned companions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.changed(TableSubstanceCompanions)
	}
	return res.RowsAffected, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// IngestionRepository handles CRUD and queries over ingestions.
type IngestionRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

// SubstanceUsage summarises how often and how recently a substance was taken.
type SubstanceUsage struct {
	SubstanceName string    `json:"substanceName"`
	Count         int       `json:"count"`
	LastUsed      time.Time `json:"lastUsed"`
}

func (r *IngestionRepository) Create(ctx context.Context, ingestions ...*model.Ingestion) error {
	if len(ingestions) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(ingestions).Error; err != nil {
		return fmt.Errorf("create ingestion: %w", err)
	}
	r.changed(TableIngestions)
	return nil
}

func (r *IngestionRepository) Update(ctx context.Context, ing *model.Ingestion) error {
	if err := r.db.WithContext(ctx).Save(ing).Error; err != nil {
		return fmt.Errorf("update ingestion: %w", err)
	}
	r.changed(TableIngestions)
	return nil
}

// Get returns nil when the ingestion does not exist.
func (r *IngestionRepository) Get(ctx context.Context, id uint) (*model.Ingestion, error) {
	ing, err := first[model.Ingestion](r.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("find ingestion: %w", err)
	}
	return ing, nil
}

// List returns ingestions by creation date, newest first. A limit <= 0 returns all.
func (r *IngestionRepository) List(ctx context.Context, limit int) ([]model.Ingestion, error) {
	q := r.db.WithContext(ctx).Order("creation_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ings []model.Ingestion
	if err := q.Find(&ings).Error; err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	return ings, nil
}

// ListByExperience returns an experience's ingestions in time order.
func (r *IngestionRepository) ListByExperience(ctx context.Context, experienceID uint) ([]model.Ingestion, error) {
	var ings []model.Ingestion
	if err := r.db.WithContext(ctx).Where("experience_id = ?", experienceID).
		Order("time ASC, id ASC").Find(&ings).Error; err != nil {
		return nil, fmt.Errorf("list experience ingestions: %w", err)
	}
	return ings, nil
}

func (r *IngestionRepository) ListByRecipeGroup(ctx context.Context, groupID string) ([]model.Ingestion, error) {
	var ings []model.Ingestion
	if err := r.db.WithContext(ctx).Where("recipe_group_id = ?", groupID).
		Order("id ASC").Find(&ings).Error; err != nil {
		return nil, fmt.Errorf("list recipe group: %w", err)
	}
	return ings, nil
}

// ListBetween returns ingestions whose time falls in [from, to).
func (r *IngestionRepository) ListBetween(ctx context.Context, from, to time.Time) ([]model.Ingestion, error) {
	var ings []model.Ingestion
	if err := r.db.WithContext(ctx).Where("time >= ? AND time < ?", from.UTC(), to.UTC()).
		Order("time ASC, id ASC").Find(&ings).Error; err != nil {
		return nil, fmt.Errorf("list ingestions between: %w", err)
	}
	return ings, nil
}

// Usage returns per-substance counts, most recently used first.
func (r *IngestionRepository) Usage(ctx context.Context) ([]SubstanceUsage, error) {
	var rows []struct {
		SubstanceName string
		Time          time.Time
	}
	if err := r.db.WithContext(ctx).Model(&model.Ingestion{}).
		Select("substance_name, time").
		Order("time DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("substance usage: %w", err)
	}

	index := make(map[string]int)
	var usage []SubstanceUsage
	for _, row := range rows {
		i, ok := index[row.SubstanceName]
		if !ok {
			index[row.SubstanceName] = len(usage)
			usage = append(usage, SubstanceUsage{SubstanceName: row.SubstanceName, LastUsed: row.Time})
			i = len(usage) - 1
		}
		usage[i].Count++
	}
	return usage, nil
}

// Consumers lists distinct explicit consumer names.
func (r *IngestionRepository) Consumers(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&model.Ingestion{}).
		Where("consumer_name IS NOT NULL AND consumer_name <> ''").
		Distinct().Order("consumer_name ASC").Pluck("consumer_name", &names).Error; err != nil {
		return nil, fmt.Errorf("list consumers: %w", err)
	}
	return names, nil
}

func (r *IngestionRepository) CountBySubstance(ctx context.Context, name string) (int64, error) {
	return r.count(ctx, "substance_name = ?", name)
}

func (r *IngestionRepository) CountByCustomUnit(ctx context.Context, unitID uint) (int64, error) {
	return r.count(ctx, "custom_unit_id = ?", unitID)
}

func (r *IngestionRepository) CountByRecipe(ctx context.Context, recipeID uint) (int64, error) {
	return r.count(ctx, "custom_recipe_id = ?", recipeID)
}

func (r *IngestionRepository) count(ctx context.Context, where string, arg any) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Ingestion{}).Where(where, arg).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count ingestions: %w", err)
	}
	return n, nil
}

func (r *IngestionRepository) RenameSubstance(ctx context.Context, from, to string) error {
	if err := r.db.WithContext(ctx).Model(&model.Ingestion{}).Where("substance_name = ?", from).
		Update("substance_name", to).Error; err != nil {
		return fmt.Errorf("rename ingestion substance: %w", err)
	}
	r.changed(TableIngestions)
	return nil
}

func (r *IngestionRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Ingestion{}, id).Error; err != nil {
		return fmt.Errorf("delete ingestion: %w", err)
	}
	r.changed(TableIngestions)
	return nil
}

func (r *IngestionRepository) DeleteByExperience(ctx context.Context, experienceID uint) error {
	if err := r.db.WithContext(ctx).Where("experience_id = ?", experienceID).
		Delete(&model.Ingestion{}).Error; err != nil {
		return fmt.Errorf("delete experience ingestions: %w", err)
	}
	r.changed(TableIngestions)
	return nil
}

func (r *IngestionRepository) DeleteByRecipeGroup(ctx context.Context, groupID string) error {
	if err := r.db.WithContext(ctx).Where("recipe_group_id = ?", groupID).
		Delete(&model.Ingestion{}).Error; err != nil {
		return fmt.Errorf("delete recipe group: %w", err)
	}
	r.changed(TableIngestions)
	return nil
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// ExperienceRepository handles CRUD for experiences.
type ExperienceRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

func (r *ExperienceRepository) Create(ctx context.Context, exp *model.Experience) error {
	if err := r.db.WithContext(ctx).Create(exp).Error; err != nil {
		return fmt.Errorf("create experience: %w", err)
	}
	r.changed(TableExperiences)
	return nil
}

func (r *ExperienceRepository) Update(ctx context.Context, exp *model.Experience) error {
	if err := r.db.WithContext(ctx).Save(exp).Error; err != nil {
		return fmt.Errorf("update experience: %w", err)
	}
	r.changed(TableExperiences)
	return nil
}

// Get returns nil when the experience does not exist.
func (r *ExperienceRepository) Get(ctx context.Context, id uint) (*model.Experience, error) {
	exp, err := first[model.Experience](r.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("find experience: %w", err)
	}
	return exp, nil
}

// List returns experiences newest first.
func (r *ExperienceRepository) List(ctx context.Context) ([]model.Experience, error) {
	var exps []model.Experience
	if err := r.db.WithContext(ctx).Order("sort_date DESC, id DESC").Find(&exps).Error; err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	return exps, nil
}

func (r *ExperienceRepository) ListFavorites(ctx context.Context) ([]model.Experience, error) {
	var exps []model.Experience
	if err := r.db.WithContext(ctx).Where("is_favorite = ?", true).
		Order("sort_date DESC, id DESC").Find(&exps).Error; err != nil {
		return nil, fmt.Errorf("list favorite experiences: %w", err)
	}
	return exps, nil
}

// Latest returns the experience with the most recent sort date, or nil.
func (r *ExperienceRepository) Latest(ctx context.Context) (*model.Experience, error) {
	exp, err := first[model.Experience](r.db.WithContext(ctx).Order("sort_date DESC, id DESC"))
	if err != nil {
		return nil, fmt.Errorf("find latest experience: %w", err)
	}
	return exp, nil
}

func (r *ExperienceRepository) SetFavorite(ctx context.Context, id uint, favorite bool) error {
	if err := r.db.WithContext(ctx).Model(&model.Experience{}).Where("id = ?", id).
		Update("is_favorite", favorite).Error; err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	r.changed(TableExperiences)
	return nil
}

// Delete removes only the experience row; use Store.DeleteExperience to cascade.
func (r *ExperienceRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Experience{}, id).Error; err != nil {
		return fmt.Errorf("delete experience: %w", err)
	}
	r.changed(TableExperiences)
	return nil
}

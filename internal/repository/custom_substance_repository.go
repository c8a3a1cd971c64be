package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// CustomSubstanceRepository handles CRUD for user-defined substances.
type CustomSubstanceRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

func (r *CustomSubstanceRepository) Create(ctx context.Context, s *model.CustomSubstance) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create custom substance: %w", err)
	}
	r.changed(TableCustomSubstances)
	return nil
}

func (r *CustomSubstanceRepository) Update(ctx context.Context, s *model.CustomSubstance) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("update custom substance: %w", err)
	}
	r.changed(TableCustomSubstances)
	return nil
}

func (r *CustomSubstanceRepository) Get(ctx context.Context, id uint) (*model.CustomSubstance, error) {
	s, err := first[model.CustomSubstance](r.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("find custom substance: %w", err)
	}
	return s, nil
}

func (r *CustomSubstanceRepository) GetByName(ctx context.Context, name string) (*model.CustomSubstance, error) {
	s, err := first[model.CustomSubstance](r.db.WithContext(ctx).Where("name = ?", name))
	if err != nil {
		return nil, fmt.Errorf("find custom substance: %w", err)
	}
	return s, nil
}

func (r *CustomSubstanceRepository) List(ctx context.Context) ([]model.CustomSubstance, error) {
	var list []model.CustomSubstance
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list custom substances: %w", err)
	}
	return list, nil
}

func (r *CustomSubstanceRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.CustomSubstance{}, id).Error; err != nil {
		return fmt.Errorf("delete custom substance: %w", err)
	}
	r.changed(TableCustomSubstances)
	return nil
}

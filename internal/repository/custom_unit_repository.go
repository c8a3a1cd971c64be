package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// CustomUnitRepository handles CRUD for custom units.
type CustomUnitRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

func (r *CustomUnitRepository) Create(ctx context.Context, u *model.CustomUnit) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create custom unit: %w", err)
	}
	r.changed(TableCustomUnits)
	return nil
}

func (r *CustomUnitRepository) Update(ctx context.Context, u *model.CustomUnit) error {
	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("update custom unit: %w", err)
	}
	r.changed(TableCustomUnits)
	return nil
}

// Get returns nil when the unit does not exist. Archived units are returned.
func (r *CustomUnitRepository) Get(ctx context.Context, id uint) (*model.CustomUnit, error) {
	u, err := first[model.CustomUnit](r.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("find custom unit: %w", err)
	}
	return u, nil
}

// List returns units ordered by creation date, newest first.
func (r *CustomUnitRepository) List(ctx context.Context, includeArchived bool) ([]model.CustomUnit, error) {
	q := r.db.WithContext(ctx).Order("creation_date DESC, id DESC")
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var list []model.CustomUnit
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list custom units: %w", err)
	}
	return list, nil
}

func (r *CustomUnitRepository) ListBySubstance(ctx context.Context, substanceName string) ([]model.CustomUnit, error) {
	var list []model.CustomUnit
	if err := r.db.WithContext(ctx).Where("substance_name = ? AND is_archived = ?", substanceName, false).
		Order("creation_date DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list substance units: %w", err)
	}
	return list, nil
}

// ByID loads the given units keyed by id; archived units are included.
func (r *CustomUnitRepository) ByID(ctx context.Context, ids []uint) (map[uint]model.CustomUnit, error) {
	out := make(map[uint]model.CustomUnit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []model.CustomUnit
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("load custom units: %w", err)
	}
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

func (r *CustomUnitRepository) Archive(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.CustomUnit{}).Where("id = ?", id).
		Update("is_archived", true).Error; err != nil {
		return fmt.Errorf("archive custom unit: %w", err)
	}
	r.changed(TableCustomUnits)
	return nil
}

func (r *CustomUnitRepository) RenameSubstance(ctx context.Context, from, to string) error {
	if err := r.db.WithContext(ctx).Model(&model.CustomUnit{}).Where("substance_name = ?", from).
		Update("substance_name", to).Error; err != nil {
		return fmt.Errorf("rename custom unit substance: %w", err)
	}
	r.changed(TableCustomUnits)
	return nil
}

func (r *CustomUnitRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.CustomUnit{}, id).Error; err != nil {
		return fmt.Errorf("delete custom unit: %w", err)
	}
	r.changed(TableCustomUnits)
	return nil
}

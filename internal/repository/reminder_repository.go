package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// ReminderRepository handles CRUD for ingestion reminders.
type ReminderRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.IngestionReminder) error {
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	r.changed(TableIngestionReminders)
	return nil
}

func (r *ReminderRepository) Update(ctx context.Context, reminder *model.IngestionReminder) error {
	if err := r.db.WithContext(ctx).Save(reminder).Error; err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	r.changed(TableIngestionReminders)
	return nil
}

func (r *ReminderRepository) Get(ctx context.Context, id uint) (*model.IngestionReminder, error) {
	reminder, err := first[model.IngestionReminder](r.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("find reminder: %w", err)
	}
	return reminder, nil
}

func (r *ReminderRepository) List(ctx context.Context) ([]model.IngestionReminder, error) {
	var list []model.IngestionReminder
	if err := r.db.WithContext(ctx).Order("time ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return list, nil
}

func (r *ReminderRepository) ListEnabled(ctx context.Context) ([]model.IngestionReminder, error) {
	var list []model.IngestionReminder
	if err := r.db.WithContext(ctx).Where("is_enabled = ?", true).
		Order("time ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list enabled reminders: %w", err)
	}
	return list, nil
}

// MarkFired records a delivery; one-shot reminders are disabled at the same time.
func (r *ReminderRepository) MarkFired(ctx context.Context, id uint, at time.Time, disable bool) error {
	updates := map[string]interface{}{"last_fired_at": at.UTC()}
	if disable {
		updates["is_enabled"] = false
	}
	if err := r.db.WithContext(ctx).Model(&model.IngestionReminder{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("mark reminder fired: %w", err)
	}
	r.changed(TableIngestionReminders)
	return nil
}

func (r *ReminderRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.IngestionReminder{}, id).Error; err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	r.changed(TableIngestionReminders)
	return nil
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// NoteRepository stores the annotations of an experience: timed notes with
// their photos and Shulgin ratings.
type NoteRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

func (r *NoteRepository) CreateTimedNote(ctx context.Context, note *model.TimedNote) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("create timed note: %w", err)
	}
	r.changed(TableTimedNotes, TableTimedNotePhotos)
	return nil
}

// UpdateTimedNote saves the note row; photos are managed separately.
func (r *NoteRepository) UpdateTimedNote(ctx context.Context, note *model.TimedNote) error {
	if err := r.db.WithContext(ctx).Omit("Photos").Save(note).Error; err != nil {
		return fmt.Errorf("update timed note: %w", err)
	}
	r.changed(TableTimedNotes)
	return nil
}

func (r *NoteRepository) GetTimedNote(ctx context.Context, id uint) (*model.TimedNote, error) {
	note, err := first[model.TimedNote](r.db.WithContext(ctx).Preload("Photos", orderByID), id)
	if err != nil {
		return nil, fmt.Errorf("find timed note: %w", err)
	}
	return note, nil
}

func (r *NoteRepository) ListTimedNotes(ctx context.Context, experienceID uint) ([]model.TimedNote, error) {
	var notes []model.TimedNote
	if err := r.db.WithContext(ctx).Preload("Photos", orderByID).
		Where("experience_id = ?", experienceID).
		Order("time ASC, id ASC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list timed notes: %w", err)
	}
	return notes, nil
}

// DeleteTimedNote removes the note and its photo rows, returning the photo paths.
func (r *NoteRepository) DeleteTimedNote(ctx context.Context, id uint) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.TimedNotePhoto{}).Where("timed_note_id = ?", id).
			Pluck("file_path", &paths).Error; err != nil {
			return err
		}
		if err := tx.Where("timed_note_id = ?", id).Delete(&model.TimedNotePhoto{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.TimedNote{}, id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete timed note: %w", err)
	}
	r.changed(TableTimedNotes, TableTimedNotePhotos)
	return paths, nil
}

func (r *NoteRepository) AddPhoto(ctx context.Context, photo *model.TimedNotePhoto) error {
	if err := r.db.WithContext(ctx).Create(photo).Error; err != nil {
		return fmt.Errorf("add photo: %w", err)
	}
	r.changed(TableTimedNotePhotos)
	return nil
}

func (r *NoteRepository) GetPhoto(ctx context.Context, id uint) (*model.TimedNotePhoto, error) {
	photo, err := first[model.TimedNotePhoto](r.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("find photo: %w", err)
	}
	return photo, nil
}

func (r *NoteRepository) DeletePhoto(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.TimedNotePhoto{}, id).Error; err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	r.changed(TableTimedNotePhotos)
	return nil
}

func (r *NoteRepository) CreateRating(ctx context.Context, rating *model.ShulginRating) error {
	if err := r.db.WithContext(ctx).Create(rating).Error; err != nil {
		return fmt.Errorf("create rating: %w", err)
	}
	r.changed(TableShulginRatings)
	return nil
}

func (r *NoteRepository) UpdateRating(ctx context.Context, rating *model.ShulginRating) error {
	if err := r.db.WithContext(ctx).Save(rating).Error; err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	r.changed(TableShulginRatings)
	return nil
}

func (r *NoteRepository) ListRatings(ctx context.Context, experienceID uint) ([]model.ShulginRating, error) {
	var ratings []model.ShulginRating
	if err := r.db.WithContext(ctx).Where("experience_id = ?", experienceID).
		Order("time ASC, id ASC").Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}

func (r *NoteRepository) DeleteRating(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.ShulginRating{}, id).Error; err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}
	r.changed(TableShulginRatings)
	return nil
}

// DeleteByExperience removes every rating, timed note and photo row of an
// experience and returns the photo paths that were referenced.
func (r *NoteRepository) DeleteByExperience(ctx context.Context, experienceID uint) ([]string, error) {
	db := r.db.WithContext(ctx)
	noteIDs := db.Model(&model.TimedNote{}).Select("id").Where("experience_id = ?", experienceID)

	var paths []string
	if err := db.Model(&model.TimedNotePhoto{}).Where("timed_note_id IN (?)", noteIDs).
		Pluck("file_path", &paths).Error; err != nil {
		return nil, fmt.Errorf("list experience photos: %w", err)
	}
	if err := db.Where("timed_note_id IN (?)", noteIDs).Delete(&model.TimedNotePhoto{}).Error; err != nil {
		return nil, fmt.Errorf("delete experience photos: %w", err)
	}
	if err := db.Where("experience_id = ?", experienceID).Delete(&model.TimedNote{}).Error; err != nil {
		return nil, fmt.Errorf("delete experience notes: %w", err)
	}
	if err := db.Where("experience_id = ?", experienceID).Delete(&model.ShulginRating{}).Error; err != nil {
		return nil, fmt.Errorf("delete experience ratings: %w", err)
	}
	r.changed(TableTimedNotes, TableTimedNotePhotos, TableShulginRatings)
	return paths, nil
}

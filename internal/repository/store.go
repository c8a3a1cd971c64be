package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store bundles the per-table repositories and runs multi-table writes in a
// single transaction. Change notifications for writes made through a
// transactional Store are delivered only after commit.
type Store struct {
	db      *gorm.DB
	tracker *Tracker
	pending *tableSet

	Experiences      *ExperienceRepository
	Ingestions       *IngestionRepository
	Companions       *CompanionRepository
	CustomSubstances *CustomSubstanceRepository
	CustomUnits      *CustomUnitRepository
	Recipes          *CustomRecipeRepository
	Notes            *NoteRepository
	Reminders        *ReminderRepository
}

func NewStore(db *gorm.DB, tracker *Tracker) *Store {
	if tracker == nil {
		tracker = NewTracker()
	}
	return bind(db, tracker, nil)
}

func bind(db *gorm.DB, tracker *Tracker, pending *tableSet) *Store {
	s := &Store{db: db, tracker: tracker, pending: pending}
	changed := s.changed
	s.Experiences = &ExperienceRepository{db: db, changed: changed}
	s.Ingestions = &IngestionRepository{db: db, changed: changed}
	s.Companions = &CompanionRepository{db: db, changed: changed}
	s.CustomSubstances = &CustomSubstanceRepository{db: db, changed: changed}
	s.CustomUnits = &CustomUnitRepository{db: db, changed: changed}
	s.Recipes = &CustomRecipeRepository{db: db, changed: changed}
	s.Notes = &NoteRepository{db: db, changed: changed}
	s.Reminders = &ReminderRepository{db: db, changed: changed}
	return s
}

// Tracker returns the change tracker used for observation.
func (s *Store) Tracker() *Tracker {
	return s.tracker
}

// DB exposes the underlying handle, mainly for closing it.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) changed(tables ...string) {
	if s.pending != nil {
		s.pending.add(tables...)
		return
	}
	s.tracker.Notify(tables...)
}

// Transaction runs fn against a Store bound to one database transaction.
// Nested calls reuse the outer transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	if s.pending != nil {
		return fn(s)
	}
	pending := &tableSet{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(bind(tx, s.tracker, pending))
	})
	if err != nil {
		return err
	}
	s.tracker.Notify(pending.list()...)
	return nil
}

// first loads a single row, returning nil when it does not exist.
func first[T any](q *gorm.DB, conds ...any) (*T, error) {
	var row T
	err := q.First(&row, conds...).Error
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

func deleteAll(tx *gorm.DB, tables ...string) error {
	for _, table := range tables {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

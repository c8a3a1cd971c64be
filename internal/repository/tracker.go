package repository

import (
	"context"
	"sync"
)

// Table names as gorm derives them from the models.
const (
	TableExperiences         = "experiences"
	TableIngestions          = "ingestions"
	TableSubstanceCompanions = "substance_companions"
	TableCustomSubstances    = "custom_substances"
	TableCustomUnits         = "custom_units"
	TableCustomRecipes       = "custom_recipes"
	TableRecipeSubcomponents = "recipe_subcomponents"
	TableShulginRatings      = "shulgin_ratings"
	TableTimedNotes          = "timed_notes"
	TableTimedNotePhotos     = "timed_note_photos"
	TableIngestionReminders  = "ingestion_reminders"
)

// AllTables lists every journal table.
var AllTables = []string{
	TableExperiences, TableIngestions, TableSubstanceCompanions, TableCustomSubstances,
	TableCustomUnits, TableCustomRecipes, TableRecipeSubcomponents, TableShulginRatings,
	TableTimedNotes, TableTimedNotePhotos, TableIngestionReminders,
}

// Tracker fans out table invalidations to subscribers. Notifications are
// coalesced: a subscriber that has not consumed the previous signal only sees
// one pending signal.
type Tracker struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	tables map[string]struct{}
	ch     chan struct{}
}

func NewTracker() *Tracker {
	return &Tracker{subs: make(map[*subscription]struct{})}
}

// Subscribe returns a channel that receives after every change to one of
// tables (any table when none are given). The channel is closed once ctx is done.
func (t *Tracker) Subscribe(ctx context.Context, tables ...string) <-chan struct{} {
	sub := &subscription{ch: make(chan struct{}, 1)}
	if len(tables) > 0 {
		sub.tables = make(map[string]struct{}, len(tables))
		for _, name := range tables {
			sub.tables[name] = struct{}{}
		}
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, sub)
		close(sub.ch)
		t.mu.Unlock()
	}()

	return sub.ch
}

// Notify signals every subscriber watching one of tables.
func (t *Tracker) Notify(tables ...string) {
	if len(tables) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		if !sub.watches(tables) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (s *subscription) watches(tables []string) bool {
	if s.tables == nil {
		return true
	}
	for _, name := range tables {
		if _, ok := s.tables[name]; ok {
			return true
		}
	}
	return false
}

// Result carries one emission of an observed query.
type Result[T any] struct {
	Value T
	Err   error
}

// Observe runs load once and again after every change to tables, until ctx is
// done. The returned channel is closed when observation stops.
func Observe[T any](ctx context.Context, t *Tracker, tables []string, load func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T])
	changes := t.Subscribe(ctx, tables...)

	go func() {
		defer close(out)
		for {
			value, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Result[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}
			if _, ok := <-changes; !ok {
				return
			}
		}
	}()

	return out
}

// tableSet collects tables written inside a transaction.
type tableSet struct {
	mu     sync.Mutex
	tables map[string]struct{}
}

func (s *tableSet) add(tables ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables == nil {
		s.tables = make(map[string]struct{})
	}
	for _, name := range tables {
		s.tables[name] = struct{}{}
	}
}

func (s *tableSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	return out
}

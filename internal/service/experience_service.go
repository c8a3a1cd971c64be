package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
)

// ExperienceInput represents editable experience fields.
type ExperienceInput struct {
	Title      string
	Text       string
	SortDate   time.Time
	IsFavorite bool
	Location   model.Location
}

// CumulativeDose is the total of one substance taken by one consumer within
// an experience, in canonical units.
type CumulativeDose struct {
	SubstanceName     string   `json:"substanceName"`
	Consumer          string   `json:"consumer"`
	Units             string   `json:"units"`
	Amount            float64  `json:"amount"`
	StandardDeviation *float64 `json:"standardDeviation,omitempty"`
	IsEstimate        bool     `json:"isEstimate"`
	HasUnknown        bool     `json:"hasUnknown"`
	Count             int      `json:"count"`
}

// ExperienceDetail is an experience with everything it owns.
type ExperienceDetail struct {
	Experience      model.Experience      `json:"experience"`
	Ingestions      []model.Ingestion     `json:"ingestions"`
	Ratings         []model.ShulginRating `json:"ratings"`
	TimedNotes      []model.TimedNote     `json:"timedNotes"`
	CumulativeDoses []CumulativeDose      `json:"cumulativeDoses"`
}

// ExperienceService wraps experience related business logic.
type ExperienceService struct {
	store  *repository.Store
	photos *PhotoStore
	self   string
	log    *zap.Logger
	now    func() time.Time
}

// NewExperienceService uses self as the consumer name of the app user.
func NewExperienceService(store *repository.Store, photos *PhotoStore, self string, log *zap.Logger) *ExperienceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExperienceService{store: store, photos: photos, self: self, log: log, now: time.Now}
}

func (s *ExperienceService) Create(ctx context.Context, input ExperienceInput) (*model.Experience, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	now := s.now()
	exp := model.Experience{
		Title:        title,
		Text:         input.Text,
		CreationDate: now,
		SortDate:     input.SortDate,
		IsFavorite:   input.IsFavorite,
		Location:     input.Location,
	}
	if exp.SortDate.IsZero() {
		exp.SortDate = now
	}
	if err := s.store.Experiences.Create(ctx, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

func (s *ExperienceService) Update(ctx context.Context, id uint, input ExperienceInput) (*model.Experience, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exp.Title = title
	exp.Text = input.Text
	exp.IsFavorite = input.IsFavorite
	exp.Location = input.Location
	if !input.SortDate.IsZero() {
		exp.SortDate = input.SortDate
	}
	if err := s.store.Experiences.Update(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *ExperienceService) SetFavorite(ctx context.Context, id uint, favorite bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Experiences.SetFavorite(ctx, id, favorite)
}

// Get returns the experience or ErrNotFound.
func (s *ExperienceService) Get(ctx context.Context, id uint) (*model.Experience, error) {
	exp, err := s.store.Experiences.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, fmt.Errorf("experience %d: %w", id, ErrNotFound)
	}
	return exp, nil
}

func (s *ExperienceService) List(ctx context.Context, favoritesOnly bool) ([]model.Experience, error) {
	if favoritesOnly {
		return s.store.Experiences.ListFavorites(ctx)
	}
	return s.store.Experiences.List(ctx)
}

// ObserveList emits the experience list after every change to experiences.
func (s *ExperienceService) ObserveList(ctx context.Context) <-chan repository.Result[[]model.Experience] {
	return repository.Observe(ctx, s.store.Tracker(), []string{repository.TableExperiences}, s.store.Experiences.List)
}

// Detail loads an experience with its ingestions, notes, ratings and totals.
func (s *ExperienceService) Detail(ctx context.Context, id uint) (*ExperienceDetail, error) {
	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &ExperienceDetail{Experience: *exp}
	if detail.Ingestions, err = s.store.Ingestions.ListByExperience(ctx, id); err != nil {
		return nil, err
	}
	if detail.Ratings, err = s.store.Notes.ListRatings(ctx, id); err != nil {
		return nil, err
	}
	if detail.TimedNotes, err = s.store.Notes.ListTimedNotes(ctx, id); err != nil {
		return nil, err
	}
	units, err := s.unitsFor(ctx, detail.Ingestions)
	if err != nil {
		return nil, err
	}
	detail.CumulativeDoses = CumulativeDoses(detail.Ingestions, units, s.self)
	return detail, nil
}

// ObserveDetail emits the detail after every change to the tables it reads.
func (s *ExperienceService) ObserveDetail(ctx context.Context, id uint) <-chan repository.Result[*ExperienceDetail] {
	tables := []string{
		repository.TableExperiences, repository.TableIngestions, repository.TableShulginRatings,
		repository.TableTimedNotes, repository.TableTimedNotePhotos, repository.TableCustomUnits,
	}
	return repository.Observe(ctx, s.store.Tracker(), tables, func(ctx context.Context) (*ExperienceDetail, error) {
		return s.Detail(ctx, id)
	})
}

// CumulativeDoses for one experience.
func (s *ExperienceService) CumulativeDoses(ctx context.Context, id uint) ([]CumulativeDose, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	ings, err := s.store.Ingestions.ListByExperience(ctx, id)
	if err != nil {
		return nil, err
	}
	units, err := s.unitsFor(ctx, ings)
	if err != nil {
		return nil, err
	}
	return CumulativeDoses(ings, units, s.self), nil
}

// Delete removes the experience with everything it owns and its photo files.
func (s *ExperienceService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	photos, err := s.store.DeleteExperience(ctx, id)
	if err != nil {
		return err
	}
	if err := s.photos.Remove(photos...); err != nil {
		s.log.Warn("remove experience photos", zap.Uint("experience_id", id), zap.Error(err))
	}
	return nil
}

// FindRecent returns the experience whose latest ingestion is within window
// of at, so a new ingestion can join it. Nil when there is none.
func (s *ExperienceService) FindRecent(ctx context.Context, at time.Time, window time.Duration) (*model.Experience, error) {
	ings, err := s.store.Ingestions.ListBetween(ctx, at.Add(-window), at.Add(window))
	if err != nil {
		return nil, err
	}
	if len(ings) == 0 {
		return nil, nil
	}
	latest := ings[len(ings)-1]
	return s.store.Experiences.Get(ctx, latest.ExperienceID)
}

// RenameSubstance renames a substance across the journal.
func (s *ExperienceService) RenameSubstance(ctx context.Context, from, to string) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return invalid("substance names must not be empty")
	}
	return s.store.RenameSubstance(ctx, from, to)
}

// Usage returns how often each substance was taken, most recent first.
func (s *ExperienceService) Usage(ctx context.Context) ([]repository.SubstanceUsage, error) {
	return s.store.Ingestions.Usage(ctx)
}

// Consumers lists the other people ingestions were logged for.
func (s *ExperienceService) Consumers(ctx context.Context) ([]string, error) {
	return s.store.Ingestions.Consumers(ctx)
}

// AddRating adds a Shulgin rating to an experience.
func (s *ExperienceService) AddRating(ctx context.Context, experienceID uint, option model.ShulginRatingOption, at time.Time) (*model.ShulginRating, error) {
	if !option.Valid() {
		return nil, invalid("unknown rating %q", option)
	}
	if _, err := s.Get(ctx, experienceID); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}
	rating := model.ShulginRating{ExperienceID: experienceID, Option: option, Time: at, CreationDate: s.now()}
	if err := s.store.Notes.CreateRating(ctx, &rating); err != nil {
		return nil, err
	}
	return &rating, nil
}

func (s *ExperienceService) DeleteRating(ctx context.Context, id uint) error {
	return s.store.Notes.DeleteRating(ctx, id)
}

// TimedNoteInput represents a new timed note.
type TimedNoteInput struct {
	Note             string
	Time             time.Time
	Color            model.AdaptiveColor
	IsPartOfTimeline bool
}

func (s *ExperienceService) AddTimedNote(ctx context.Context, experienceID uint, input TimedNoteInput) (*model.TimedNote, error) {
	if strings.TrimSpace(input.Note) == "" {
		return nil, invalid("note is required")
	}
	if _, err := s.Get(ctx, experienceID); err != nil {
		return nil, err
	}
	if input.Time.IsZero() {
		input.Time = s.now()
	}
	if input.Color == "" {
		input.Color = model.Palette[0]
	}
	note := model.TimedNote{
		ExperienceID:     experienceID,
		Note:             input.Note,
		Time:             input.Time,
		Color:            input.Color,
		IsPartOfTimeline: input.IsPartOfTimeline,
		CreationDate:     s.now(),
	}
	if err := s.store.Notes.CreateTimedNote(ctx, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteTimedNote removes the note, its photo rows and files.
func (s *ExperienceService) DeleteTimedNote(ctx context.Context, id uint) error {
	photos, err := s.store.Notes.DeleteTimedNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.photos.Remove(photos...); err != nil {
		s.log.Warn("remove note photos", zap.Uint("timed_note_id", id), zap.Error(err))
	}
	return nil
}

// AddPhoto stores image data and attaches it to a timed note.
func (s *ExperienceService) AddPhoto(ctx context.Context, noteID uint, data []byte, ext, caption string) (*model.TimedNotePhoto, error) {
	if len(data) == 0 {
		return nil, invalid("photo is empty")
	}
	note, err := s.store.Notes.GetTimedNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("timed note %d: %w", noteID, ErrNotFound)
	}
	name, err := s.photos.Save(data, ext)
	if err != nil {
		return nil, err
	}
	photo := model.TimedNotePhoto{TimedNoteID: noteID, FilePath: name, Caption: caption, CreationDate: s.now()}
	if err := s.store.Notes.AddPhoto(ctx, &photo); err != nil {
		_ = s.photos.Remove(name)
		return nil, err
	}
	return &photo, nil
}

func (s *ExperienceService) unitsFor(ctx context.Context, ings []model.Ingestion) (map[uint]model.CustomUnit, error) {
	var ids []uint
	for _, ing := range ings {
		if ing.CustomUnitID != nil {
			ids = append(ids, *ing.CustomUnitID)
		}
	}
	return s.store.CustomUnits.ByID(ctx, ids)
}

// CumulativeDoses totals ingestions per consumer and substance in canonical
// units. Unknown doses set HasUnknown; an estimate anywhere marks the total as
// an estimate; deviations add in quadrature.
func CumulativeDoses(ings []model.Ingestion, units map[uint]model.CustomUnit, self string) []CumulativeDose {
	type key struct{ consumer, substance, units string }
	index := make(map[key]int)
	variance := make(map[key]float64)
	hasSD := make(map[key]bool)
	var out []CumulativeDose

	for _, ing := range ings {
		var unit *model.CustomUnit
		if ing.CustomUnitID != nil {
			if u, ok := units[*ing.CustomUnitID]; ok {
				unit = &u
			}
		}
		dose := CanonicalDose(ing, unit)
		k := key{consumer: ing.Consumer(self), substance: ing.SubstanceName, units: dose.Units}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, CumulativeDose{SubstanceName: k.substance, Consumer: k.consumer, Units: k.units})
		}
		c := &out[i]
		c.Count++
		c.IsEstimate = c.IsEstimate || dose.IsEstimate
		if dose.Amount == nil {
			c.HasUnknown = true
			continue
		}
		c.Amount += *dose.Amount
		if dose.StandardDeviation != nil {
			variance[k] += *dose.StandardDeviation * *dose.StandardDeviation
			hasSD[k] = true
		}
	}

	for k, i := range index {
		if hasSD[k] {
			out[i].StandardDeviation = ptr(math.Sqrt(variance[k]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Consumer != out[j].Consumer {
			if out[i].Consumer == self {
				return true
			}
			if out[j].Consumer == self {
				return false
			}
			return out[i].Consumer < out[j].Consumer
		}
		return out[i].SubstanceName < out[j].SubstanceName
	})
	return out
}

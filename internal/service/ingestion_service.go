package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ExperienceTarget says which experience a new ingestion belongs to. A zero
// ID creates a new experience titled Title (or after the ingestion date).
type ExperienceTarget struct {
	ID    uint
	Title string
}

// IngestionInput represents data required to log one substance.
type IngestionInput struct {
	Experience        ExperienceTarget
	SubstanceName     string
	Route             model.AdministrationRoute
	Dose              *float64
	IsEstimate        bool
	StandardDeviation *float64
	Units             string
	CustomUnitID      *uint
	Time              time.Time
	EndTime           *time.Time
	Notes             string
	StomachFullness   *model.StomachFullness
	ConsumerName      string
	Color             *model.AdaptiveColor
}

// RecipeInput represents a dose of a custom recipe, in recipe units.
type RecipeInput struct {
	Experience        ExperienceTarget
	RecipeID          uint
	Dose              *float64
	IsEstimate        bool
	StandardDeviation *float64
	Time              time.Time
	EndTime           *time.Time
	Notes             string
	StomachFullness   *model.StomachFullness
	ConsumerName      string
}

// IngestionService logs and removes ingestions.
type IngestionService struct {
	store *repository.Store
	now   func() time.Time
}

func NewIngestionService(store *repository.Store) *IngestionService {
	return &IngestionService{store: store, now: time.Now}
}

// LogIngestion stores one ingestion, creating the experience and the
// substance companion when needed.
func (s *IngestionService) LogIngestion(ctx context.Context, input IngestionInput) (*model.Ingestion, error) {
	name := strings.TrimSpace(input.SubstanceName)
	if name == "" {
		return nil, invalid("substance name is required")
	}
	if input.Dose != nil && *input.Dose < 0 {
		return nil, invalid("dose must not be negative")
	}
	if input.Time.IsZero() {
		input.Time = s.now()
	}
	if input.EndTime != nil && input.EndTime.Before(input.Time) {
		return nil, invalid("end time is before start time")
	}

	var ing model.Ingestion
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		route := input.Route
		units := input.Units
		if input.CustomUnitID != nil {
			unit, err := tx.CustomUnits.Get(ctx, *input.CustomUnitID)
			if err != nil {
				return err
			}
			if unit == nil || unit.IsArchived {
				return fmt.Errorf("custom unit %d: %w", *input.CustomUnitID, ErrNotFound)
			}
			if unit.SubstanceName != name {
				return invalid("custom unit %q belongs to %s", unit.Name, unit.SubstanceName)
			}
			units = unit.OriginalUnit
			if route == "" {
				route = unit.AdministrationRoute
			}
		}
		if !route.Valid() {
			return invalid("unknown administration route %q", route)
		}

		expID, err := s.resolveExperience(ctx, tx, input.Experience, input.Time)
		if err != nil {
			return err
		}

		ing = model.Ingestion{
			SubstanceName:                  name,
			Time:                           input.Time,
			EndTime:                        input.EndTime,
			CreationDate:                   s.now(),
			AdministrationRoute:            route,
			Dose:                           input.Dose,
			IsDoseAnEstimate:               input.IsEstimate,
			EstimatedDoseStandardDeviation: input.StandardDeviation,
			Units:                          units,
			ExperienceID:                   expID,
			Notes:                          input.Notes,
			StomachFullness:                input.StomachFullness,
			ConsumerName:                   consumer(input.ConsumerName),
			CustomUnitID:                   input.CustomUnitID,
		}
		if err := tx.Ingestions.Create(ctx, &ing); err != nil {
			return err
		}
		return ensureCompanion(ctx, tx, name, input.Color)
	})
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

// LogRecipe expands a recipe dose into one ingestion per subcomponent. All
// rows share a fresh recipe group id.
func (s *IngestionService) LogRecipe(ctx context.Context, input RecipeInput) ([]model.Ingestion, error) {
	if input.Dose != nil && *input.Dose < 0 {
		return nil, invalid("dose must not be negative")
	}
	if input.Time.IsZero() {
		input.Time = s.now()
	}
	if input.EndTime != nil && input.EndTime.Before(input.Time) {
		return nil, invalid("end time is before start time")
	}

	var created []model.Ingestion
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		recipe, err := tx.Recipes.Get(ctx, input.RecipeID)
		if err != nil {
			return err
		}
		if recipe == nil || recipe.IsArchived {
			return fmt.Errorf("recipe %d: %w", input.RecipeID, ErrNotFound)
		}
		if len(recipe.Subcomponents) == 0 {
			return invalid("recipe %q has no subcomponents", recipe.Name)
		}

		expID, err := s.resolveExperience(ctx, tx, input.Experience, input.Time)
		if err != nil {
			return err
		}

		group := uuid.NewString()
		recipeID := recipe.ID
		now := s.now()
		doses := RecipeComponentDoses(*recipe, Dose{
			Amount:            input.Dose,
			StandardDeviation: input.StandardDeviation,
			IsEstimate:        input.IsEstimate,
		})

		rows := make([]*model.Ingestion, 0, len(doses))
		for _, comp := range doses {
			units := comp.Dose.Units
			if comp.CustomUnitID != nil {
				unit, err := tx.CustomUnits.Get(ctx, *comp.CustomUnitID)
				if err != nil {
					return err
				}
				if unit == nil {
					return fmt.Errorf("custom unit %d of recipe %q: %w", *comp.CustomUnitID, recipe.Name, ErrNotFound)
				}
				units = unit.OriginalUnit
			}
			rows = append(rows, &model.Ingestion{
				SubstanceName:                  comp.SubstanceName,
				Time:                           input.Time,
				EndTime:                        input.EndTime,
				CreationDate:                   now,
				AdministrationRoute:            recipe.AdministrationRoute,
				Dose:                           comp.Dose.Amount,
				IsDoseAnEstimate:               comp.Dose.IsEstimate,
				EstimatedDoseStandardDeviation: comp.Dose.StandardDeviation,
				Units:                          units,
				ExperienceID:                   expID,
				Notes:                          input.Notes,
				StomachFullness:                input.StomachFullness,
				ConsumerName:                   consumer(input.ConsumerName),
				CustomUnitID:                   comp.CustomUnitID,
				CustomRecipeID:                 &recipeID,
				RecipeGroupID:                  &group,
			})
		}
		if err := tx.Ingestions.Create(ctx, rows...); err != nil {
			return err
		}
		for _, row := range rows {
			if err := ensureCompanion(ctx, tx, row.SubstanceName, nil); err != nil {
				return err
			}
			created = append(created, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateIngestion saves edits and moves the companion along with a renamed
// substance. Edits pass the same checks as LogIngestion; the recipe link of
// the stored row is kept so a recipe group is still deleted as a set.
func (s *IngestionService) UpdateIngestion(ctx context.Context, ing *model.Ingestion) error {
	ing.SubstanceName = strings.TrimSpace(ing.SubstanceName)
	if ing.SubstanceName == "" {
		return invalid("substance name is required")
	}
	if ing.Dose != nil && *ing.Dose < 0 {
		return invalid("dose must not be negative")
	}
	if ing.EndTime != nil && ing.EndTime.Before(ing.Time) {
		return invalid("end time is before start time")
	}
	if !ing.AdministrationRoute.Valid() {
		return invalid("unknown administration route %q", ing.AdministrationRoute)
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Ingestions.Get(ctx, ing.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("ingestion %d: %w", ing.ID, ErrNotFound)
		}
		if ing.CustomUnitID != nil {
			unit, err := tx.CustomUnits.Get(ctx, *ing.CustomUnitID)
			if err != nil {
				return err
			}
			kept := existing.CustomUnitID != nil && *existing.CustomUnitID == *ing.CustomUnitID
			if unit == nil || (unit.IsArchived && !kept) {
				return fmt.Errorf("custom unit %d: %w", *ing.CustomUnitID, ErrNotFound)
			}
			if unit.SubstanceName != ing.SubstanceName {
				return invalid("custom unit %q belongs to %s", unit.Name, unit.SubstanceName)
			}
			ing.Units = unit.OriginalUnit
		}
		exp, err := tx.Experiences.Get(ctx, ing.ExperienceID)
		if err != nil {
			return err
		}
		if exp == nil {
			return fmt.Errorf("experience %d: %w", ing.ExperienceID, ErrNotFound)
		}
		ing.CreationDate = existing.CreationDate
		ing.RecipeGroupID = existing.RecipeGroupID
		ing.CustomRecipeID = existing.CustomRecipeID
		if err := tx.Ingestions.Update(ctx, ing); err != nil {
			return err
		}
		if err := ensureCompanion(ctx, tx, ing.SubstanceName, nil); err != nil {
			return err
		}
		_, err = tx.Companions.DeleteOrphaned(ctx)
		return err
	})
}

// DeleteIngestion removes an ingestion (and its recipe group). It returns the
// number of removed rows.
func (s *IngestionService) DeleteIngestion(ctx context.Context, id uint) (int, error) {
	n, err := s.store.DeleteIngestion(ctx, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("ingestion %d: %w", id, ErrNotFound)
	}
	return n, nil
}

// Get returns the ingestion or ErrNotFound.
func (s *IngestionService) Get(ctx context.Context, id uint) (*model.Ingestion, error) {
	ing, err := s.store.Ingestions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ing == nil {
		return nil, fmt.Errorf("ingestion %d: %w", id, ErrNotFound)
	}
	return ing, nil
}

// ObserveExperience emits the experience's ingestions after every change.
func (s *IngestionService) ObserveExperience(ctx context.Context, experienceID uint) <-chan repository.Result[[]model.Ingestion] {
	return repository.Observe(ctx, s.store.Tracker(), []string{repository.TableIngestions},
		func(ctx context.Context) ([]model.Ingestion, error) {
			return s.store.Ingestions.ListByExperience(ctx, experienceID)
		})
}

func (s *IngestionService) resolveExperience(ctx context.Context, tx *repository.Store, target ExperienceTarget, at time.Time) (uint, error) {
	if target.ID != 0 {
		exp, err := tx.Experiences.Get(ctx, target.ID)
		if err != nil {
			return 0, err
		}
		if exp == nil {
			return 0, fmt.Errorf("experience %d: %w", target.ID, ErrNotFound)
		}
		return exp.ID, nil
	}
	title := strings.TrimSpace(target.Title)
	if title == "" {
		title = at.Format("Mon, 02 Jan 2006")
	}
	exp := model.Experience{Title: title, CreationDate: s.now(), SortDate: at}
	if err := tx.Experiences.Create(ctx, &exp); err != nil {
		return 0, err
	}
	return exp.ID, nil
}

func ensureCompanion(ctx context.Context, tx *repository.Store, name string, color *model.AdaptiveColor) error {
	if color != nil {
		return tx.Companions.Upsert(ctx, &model.SubstanceCompanion{SubstanceName: name, Color: *color})
	}
	existing, err := tx.Companions.Get(ctx, name)
	if err != nil || existing != nil {
		return err
	}
	used, err := tx.Companions.UsedColors(ctx)
	if err != nil {
		return err
	}
	return tx.Companions.CreateIfMissing(ctx, &model.SubstanceCompanion{SubstanceName: name, Color: model.PickColor(used)})
}

func consumer(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &name
}

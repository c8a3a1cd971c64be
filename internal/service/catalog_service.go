package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
)

// CatalogService manages user-defined substances, units and recipes.
type CatalogService struct {
	store *repository.Store
	now   func() time.Time
}

func NewCatalogService(store *repository.Store) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

func (s *CatalogService) CreateSubstance(ctx context.Context, sub model.CustomSubstance) (*model.CustomSubstance, error) {
	sub.ID = 0
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Name == "" {
		return nil, invalid("substance name is required")
	}
	existing, err := s.store.CustomSubstances.GetByName(ctx, sub.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, invalid("custom substance %q already exists", sub.Name)
	}
	if err := s.store.CustomSubstances.Create(ctx, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubstance saves the substance and, when its name changed, renames
// every reference to it.
func (s *CatalogService) UpdateSubstance(ctx context.Context, sub model.CustomSubstance) error {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Name == "" {
		return invalid("substance name is required")
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.CustomSubstances.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("custom substance %d: %w", sub.ID, ErrNotFound)
		}
		if err := tx.CustomSubstances.Update(ctx, &sub); err != nil {
			return err
		}
		return tx.RenameSubstance(ctx, existing.Name, sub.Name)
	})
}

func (s *CatalogService) ListSubstances(ctx context.Context) ([]model.CustomSubstance, error) {
	return s.store.CustomSubstances.List(ctx)
}

func (s *CatalogService) DeleteSubstance(ctx context.Context, id uint) error {
	return s.store.CustomSubstances.Delete(ctx, id)
}

// MergeSubstances imports custom substances by name without touching other data.
func (s *CatalogService) MergeSubstances(ctx context.Context, list []model.CustomSubstance) (created, updated int, err error) {
	for _, sub := range list {
		if strings.TrimSpace(sub.Name) == "" {
			return 0, 0, invalid("custom substance without name")
		}
	}
	return s.store.MergeCustomSubstances(ctx, list)
}

func (s *CatalogService) CreateUnit(ctx context.Context, unit model.CustomUnit) (*model.CustomUnit, error) {
	unit.ID = 0
	if err := validateUnit(&unit); err != nil {
		return nil, err
	}
	unit.CreationDate = s.now()
	unit.IsArchived = false
	if err := s.store.CustomUnits.Create(ctx, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (s *CatalogService) UpdateUnit(ctx context.Context, unit model.CustomUnit) error {
	if err := validateUnit(&unit); err != nil {
		return err
	}
	existing, err := s.store.CustomUnits.Get(ctx, unit.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("custom unit %d: %w", unit.ID, ErrNotFound)
	}
	unit.CreationDate = existing.CreationDate
	return s.store.CustomUnits.Update(ctx, &unit)
}

func (s *CatalogService) GetUnit(ctx context.Context, id uint) (*model.CustomUnit, error) {
	unit, err := s.store.CustomUnits.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("custom unit %d: %w", id, ErrNotFound)
	}
	return unit, nil
}

func (s *CatalogService) ListUnits(ctx context.Context, includeArchived bool) ([]model.CustomUnit, error) {
	return s.store.CustomUnits.List(ctx, includeArchived)
}

// DeleteUnit archives a unit in use and deletes it otherwise.
func (s *CatalogService) DeleteUnit(ctx context.Context, id uint) (archived bool, err error) {
	if _, err := s.GetUnit(ctx, id); err != nil {
		return false, err
	}
	return s.store.DeleteCustomUnit(ctx, id)
}

func (s *CatalogService) CreateRecipe(ctx context.Context, recipe model.CustomRecipe) (*model.CustomRecipe, error) {
	recipe.ID = 0
	if err := s.validateRecipe(ctx, &recipe); err != nil {
		return nil, err
	}
	for i := range recipe.Subcomponents {
		recipe.Subcomponents[i].ID = 0
		recipe.Subcomponents[i].RecipeID = 0
	}
	recipe.CreationDate = s.now()
	recipe.IsArchived = false
	if err := s.store.Recipes.Create(ctx, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (s *CatalogService) UpdateRecipe(ctx context.Context, recipe model.CustomRecipe) error {
	if err := s.validateRecipe(ctx, &recipe); err != nil {
		return err
	}
	existing, err := s.store.Recipes.Get(ctx, recipe.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("recipe %d: %w", recipe.ID, ErrNotFound)
	}
	recipe.CreationDate = existing.CreationDate
	return s.store.Recipes.Update(ctx, &recipe)
}

func (s *CatalogService) GetRecipe(ctx context.Context, id uint) (*model.CustomRecipe, error) {
	recipe, err := s.store.Recipes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}
	return recipe, nil
}

func (s *CatalogService) ListRecipes(ctx context.Context, includeArchived bool) ([]model.CustomRecipe, error) {
	return s.store.Recipes.List(ctx, includeArchived)
}

// DeleteRecipe archives a recipe in use and deletes it otherwise.
func (s *CatalogService) DeleteRecipe(ctx context.Context, id uint) (archived bool, err error) {
	if _, err := s.GetRecipe(ctx, id); err != nil {
		return false, err
	}
	return s.store.DeleteCustomRecipe(ctx, id)
}

func validateUnit(unit *model.CustomUnit) error {
	unit.SubstanceName = strings.TrimSpace(unit.SubstanceName)
	unit.Name = strings.TrimSpace(unit.Name)
	switch {
	case unit.SubstanceName == "":
		return invalid("custom unit needs a substance")
	case unit.Name == "":
		return invalid("custom unit needs a name")
	case !unit.AdministrationRoute.Valid():
		return invalid("unknown administration route %q", unit.AdministrationRoute)
	case unit.Dose != nil && *unit.Dose <= 0:
		return invalid("dose per unit must be positive")
	case unit.EstimatedDoseStandardDeviation != nil && *unit.EstimatedDoseStandardDeviation < 0:
		return invalid("standard deviation must not be negative")
	}
	if unit.Unit == "" {
		unit.Unit = unit.Name
	}
	return nil
}

func (s *CatalogService) validateRecipe(ctx context.Context, recipe *model.CustomRecipe) error {
	recipe.Name = strings.TrimSpace(recipe.Name)
	if recipe.Name == "" {
		return invalid("recipe needs a name")
	}
	if !recipe.AdministrationRoute.Valid() {
		return invalid("unknown administration route %q", recipe.AdministrationRoute)
	}
	if len(recipe.Subcomponents) == 0 {
		return invalid("recipe needs at least one subcomponent")
	}
	for i := range recipe.Subcomponents {
		sub := &recipe.Subcomponents[i]
		sub.SubstanceName = strings.TrimSpace(sub.SubstanceName)
		if sub.SubstanceName == "" {
			return invalid("subcomponent %d needs a substance", i+1)
		}
		if sub.Dose != nil && *sub.Dose < 0 {
			return invalid("subcomponent %d has a negative dose", i+1)
		}
		if sub.CustomUnitID == nil {
			continue
		}
		unit, err := s.store.CustomUnits.Get(ctx, *sub.CustomUnitID)
		if err != nil {
			return err
		}
		if unit == nil || unit.IsArchived {
			return fmt.Errorf("custom unit %d: %w", *sub.CustomUnitID, ErrNotFound)
		}
		if unit.SubstanceName != sub.SubstanceName {
			return invalid("custom unit %q belongs to %s", unit.Name, unit.SubstanceName)
		}
		sub.Units = unit.OriginalUnit
	}
	if recipe.Unit == "" {
		recipe.Unit = "serving"
	}
	return nil
}

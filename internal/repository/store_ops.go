package repository

import (
	"context"
	"fmt"

	"substance-journal/internal/model"
)

// ExperienceRecord is an experience with everything it owns.
type ExperienceRecord struct {
	Experience model.Experience
	Ingestions []model.Ingestion
	Ratings    []model.ShulginRating
	TimedNotes []model.TimedNote
}

// Dataset is the complete logical content of the journal.
type Dataset struct {
	Experiences      []ExperienceRecord
	Companions       []model.SubstanceCompanion
	CustomSubstances []model.CustomSubstance
	CustomUnits      []model.CustomUnit
	CustomRecipes    []model.CustomRecipe
	Reminders        []model.IngestionReminder
}

// DeleteExperience removes an experience with its ingestions, ratings, timed
// notes and photos, then drops companions left without ingestions. The paths
// of deleted photos are returned so the caller can remove the files.
func (s *Store) DeleteExperience(ctx context.Context, id uint) ([]string, error) {
	var photos []string
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Ingestions.DeleteByExperience(ctx, id); err != nil {
			return err
		}
		paths, err := tx.Notes.DeleteByExperience(ctx, id)
		if err != nil {
			return err
		}
		photos = paths
		if err := tx.Experiences.Delete(ctx, id); err != nil {
			return err
		}
		_, err = tx.Companions.DeleteOrphaned(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// DeleteIngestion removes an ingestion. When it was logged from a recipe the
// whole recipe group goes with it. Returns the number of removed rows.
func (s *Store) DeleteIngestion(ctx context.Context, id uint) (int, error) {
	removed := 0
	err := s.Transaction(ctx, func(tx *Store) error {
		ing, err := tx.Ingestions.Get(ctx, id)
		if err != nil {
			return err
		}
		if ing == nil {
			return nil
		}
		if ing.RecipeGroupID != nil && *ing.RecipeGroupID != "" {
			group, err := tx.Ingestions.ListByRecipeGroup(ctx, *ing.RecipeGroupID)
			if err != nil {
				return err
			}
			if err := tx.Ingestions.DeleteByRecipeGroup(ctx, *ing.RecipeGroupID); err != nil {
				return err
			}
			removed = len(group)
		} else {
			if err := tx.Ingestions.Delete(ctx, id); err != nil {
				return err
			}
			removed = 1
		}
		_, err = tx.Companions.DeleteOrphaned(ctx)
		return err
	})
	return removed, err
}

// DeleteCustomUnit archives a unit that ingestions refer to and deletes it
// otherwise. It reports whether the unit was archived.
func (s *Store) DeleteCustomUnit(ctx context.Context, id uint) (bool, error) {
	archived := false
	err := s.Transaction(ctx, func(tx *Store) error {
		n, err := tx.Ingestions.CountByCustomUnit(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			archived = true
			return tx.CustomUnits.Archive(ctx, id)
		}
		return tx.CustomUnits.Delete(ctx, id)
	})
	return archived, err
}

// DeleteCustomRecipe archives a recipe that ingestions refer to and deletes it
// otherwise. It reports whether the recipe was archived.
func (s *Store) DeleteCustomRecipe(ctx context.Context, id uint) (bool, error) {
	archived := false
	err := s.Transaction(ctx, func(tx *Store) error {
		n, err := tx.Ingestions.CountByRecipe(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			archived = true
			return tx.Recipes.Archive(ctx, id)
		}
		return tx.Recipes.Delete(ctx, id)
	})
	return archived, err
}

// RenameSubstance moves every reference from one substance name to another.
// An existing companion of the target name wins over the old one.
func (s *Store) RenameSubstance(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	return s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Ingestions.RenameSubstance(ctx, from, to); err != nil {
			return err
		}
		if err := tx.CustomUnits.RenameSubstance(ctx, from, to); err != nil {
			return err
		}
		if err := tx.Recipes.RenameSubstance(ctx, from, to); err != nil {
			return err
		}
		old, err := tx.Companions.Get(ctx, from)
		if err != nil || old == nil {
			return err
		}
		if err := tx.Companions.Delete(ctx, from); err != nil {
			return err
		}
		return tx.Companions.CreateIfMissing(ctx, &model.SubstanceCompanion{SubstanceName: to, Color: old.Color})
	})
}

// Snapshot reads the whole journal.
func (s *Store) Snapshot(ctx context.Context) (*Dataset, error) {
	data := &Dataset{}
	err := s.Transaction(ctx, func(tx *Store) error {
		exps, err := tx.Experiences.List(ctx)
		if err != nil {
			return err
		}
		for _, exp := range exps {
			rec := ExperienceRecord{Experience: exp}
			if rec.Ingestions, err = tx.Ingestions.ListByExperience(ctx, exp.ID); err != nil {
				return err
			}
			if rec.Ratings, err = tx.Notes.ListRatings(ctx, exp.ID); err != nil {
				return err
			}
			if rec.TimedNotes, err = tx.Notes.ListTimedNotes(ctx, exp.ID); err != nil {
				return err
			}
			data.Experiences = append(data.Experiences, rec)
		}
		if data.Companions, err = tx.Companions.List(ctx); err != nil {
			return err
		}
		if data.CustomSubstances, err = tx.CustomSubstances.List(ctx); err != nil {
			return err
		}
		if data.CustomUnits, err = tx.CustomUnits.List(ctx, true); err != nil {
			return err
		}
		if data.CustomRecipes, err = tx.Recipes.List(ctx, true); err != nil {
			return err
		}
		data.Reminders, err = tx.Reminders.List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return data, nil
}

// DeleteAll empties every journal table.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.Transaction(ctx, func(tx *Store) error {
		if err := deleteAll(tx.db.WithContext(ctx), AllTables...); err != nil {
			return err
		}
		tx.changed(AllTables...)
		return nil
	})
}

// ReplaceAll deletes everything and inserts data in one transaction. Custom
// units and recipes keep their ids so ingestions can refer to them; experience
// children are attached to the experience ids assigned on insert.
func (s *Store) ReplaceAll(ctx context.Context, data *Dataset) error {
	return s.Transaction(ctx, func(tx *Store) error {
		if err := tx.DeleteAll(ctx); err != nil {
			return err
		}
		for i := range data.CustomUnits {
			if err := tx.CustomUnits.Create(ctx, &data.CustomUnits[i]); err != nil {
				return err
			}
		}
		for i := range data.CustomRecipes {
			if err := tx.Recipes.Create(ctx, &data.CustomRecipes[i]); err != nil {
				return err
			}
		}
		for i := range data.CustomSubstances {
			if err := tx.CustomSubstances.Create(ctx, &data.CustomSubstances[i]); err != nil {
				return err
			}
		}
		for i := range data.Companions {
			if err := tx.Companions.Upsert(ctx, &data.Companions[i]); err != nil {
				return err
			}
		}
		for i := range data.Reminders {
			if err := tx.Reminders.Create(ctx, &data.Reminders[i]); err != nil {
				return err
			}
		}
		for i := range data.Experiences {
			if err := tx.insertRecord(ctx, &data.Experiences[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertRecord(ctx context.Context, rec *ExperienceRecord) error {
	if err := s.Experiences.Create(ctx, &rec.Experience); err != nil {
		return err
	}
	expID := rec.Experience.ID

	ings := make([]*model.Ingestion, 0, len(rec.Ingestions))
	for i := range rec.Ingestions {
		rec.Ingestions[i].ExperienceID = expID
		ings = append(ings, &rec.Ingestions[i])
	}
	if err := s.Ingestions.Create(ctx, ings...); err != nil {
		return err
	}
	for i := range rec.Ratings {
		rec.Ratings[i].ExperienceID = expID
		if err := s.Notes.CreateRating(ctx, &rec.Ratings[i]); err != nil {
			return err
		}
	}
	for i := range rec.TimedNotes {
		rec.TimedNotes[i].ExperienceID = expID
		if err := s.Notes.CreateTimedNote(ctx, &rec.TimedNotes[i]); err != nil {
			return err
		}
	}
	return nil
}

// MergeCustomSubstances updates substances matching by name and inserts the
// rest. Ids of incoming rows are ignored.
func (s *Store) MergeCustomSubstances(ctx context.Context, list []model.CustomSubstance) (created, updated int, err error) {
	err = s.Transaction(ctx, func(tx *Store) error {
		for _, incoming := range list {
			existing, err := tx.CustomSubstances.GetByName(ctx, incoming.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Units = incoming.Units
				existing.Description = incoming.Description
				if err := tx.CustomSubstances.Update(ctx, existing); err != nil {
					return err
				}
				updated++
				continue
			}
			row := model.CustomSubstance{Name: incoming.Name, Units: incoming.Units, Description: incoming.Description}
			if err := tx.CustomSubstances.Create(ctx, &row); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

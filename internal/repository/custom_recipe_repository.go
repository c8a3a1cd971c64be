package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"substance-journal/internal/model"
)

// CustomRecipeRepository handles recipes together with their subcomponents.
type CustomRecipeRepository struct {
	db      *gorm.DB
	changed func(tables ...string)
}

// Create inserts the recipe and its subcomponents.
func (r *CustomRecipeRepository) Create(ctx context.Context, recipe *model.CustomRecipe) error {
	if err := r.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return fmt.Errorf("create recipe: %w", err)
	}
	r.changed(TableCustomRecipes, TableRecipeSubcomponents)
	return nil
}

// Update saves the recipe row and replaces its subcomponents.
func (r *CustomRecipeRepository) Update(ctx context.Context, recipe *model.CustomRecipe) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Subcomponents").Save(recipe).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&model.RecipeSubcomponent{}).Error; err != nil {
			return err
		}
		for i := range recipe.Subcomponents {
			recipe.Subcomponents[i].ID = 0
			recipe.Subcomponents[i].RecipeID = recipe.ID
		}
		if len(recipe.Subcomponents) == 0 {
			return nil
		}
		return tx.Create(&recipe.Subcomponents).Error
	})
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	r.changed(TableCustomRecipes, TableRecipeSubcomponents)
	return nil
}

// Get returns the recipe with subcomponents, or nil.
func (r *CustomRecipeRepository) Get(ctx context.Context, id uint) (*model.CustomRecipe, error) {
	recipe, err := first[model.CustomRecipe](r.db.WithContext(ctx).Preload("Subcomponents", orderByID), id)
	if err != nil {
		return nil, fmt.Errorf("find recipe: %w", err)
	}
	return recipe, nil
}

func (r *CustomRecipeRepository) List(ctx context.Context, includeArchived bool) ([]model.CustomRecipe, error) {
	q := r.db.WithContext(ctx).Preload("Subcomponents", orderByID).Order("creation_date DESC, id DESC")
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var list []model.CustomRecipe
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return list, nil
}

func (r *CustomRecipeRepository) Archive(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.CustomRecipe{}).Where("id = ?", id).
		Update("is_archived", true).Error; err != nil {
		return fmt.Errorf("archive recipe: %w", err)
	}
	r.changed(TableCustomRecipes)
	return nil
}

func (r *CustomRecipeRepository) RenameSubstance(ctx context.Context, from, to string) error {
	if err := r.db.WithContext(ctx).Model(&model.RecipeSubcomponent{}).Where("substance_name = ?", from).
		Update("substance_name", to).Error; err != nil {
		return fmt.Errorf("rename subcomponent substance: %w", err)
	}
	r.changed(TableRecipeSubcomponents)
	return nil
}

// Delete removes the recipe and its subcomponents.
func (r *CustomRecipeRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&model.RecipeSubcomponent{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.CustomRecipe{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	r.changed(TableCustomRecipes, TableRecipeSubcomponents)
	return nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

package model

import "time"

// CustomRecipe is a named mixture of substances in fixed proportions.
// Subcomponent doses are per one unit of the recipe.
type CustomRecipe struct {
	ID                  uint                 `gorm:"primaryKey" json:"id"`
	Name                string               `json:"name"`
	CreationDate        time.Time            `json:"creationDate"`
	AdministrationRoute AdministrationRoute  `json:"administrationRoute"`
	IsArchived          bool                 `gorm:"default:false" json:"isArchived"`
	Unit                string               `json:"unit"`
	UnitPlural          string               `json:"unitPlural,omitempty"`
	Note                string               `json:"note,omitempty"`
	Subcomponents       []RecipeSubcomponent `gorm:"foreignKey:RecipeID" json:"subcomponents"`
}

// RecipeSubcomponent is one substance of a recipe. When CustomUnitID is set the
// dose is expressed in that custom unit.
type RecipeSubcomponent struct {
	ID                             uint     `gorm:"primaryKey" json:"id"`
	RecipeID                       uint     `gorm:"index" json:"recipeId"`
	SubstanceName                  string   `json:"substanceName"`
	Dose                           *float64 `json:"dose,omitempty"`
	EstimatedDoseStandardDeviation *float64 `json:"estimatedDoseStandardDeviation,omitempty"`
	IsEstimate                     bool     `json:"isEstimate"`
	Units                          string   `json:"units"`
	CustomUnitID                   *uint    `json:"customUnitId,omitempty"`
}

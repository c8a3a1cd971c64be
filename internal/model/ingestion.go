package model

import "time"

// Ingestion is a single logged dose. A nil Dose means the dose is unknown.
type Ingestion struct {
	ID                             uint                `gorm:"primaryKey" json:"id"`
	SubstanceName                  string              `gorm:"index" json:"substanceName"`
	Time                           time.Time           `gorm:"index" json:"time"`
	EndTime                        *time.Time          `json:"endTime,omitempty"`
	CreationDate                   time.Time           `json:"creationDate"`
	AdministrationRoute            AdministrationRoute `json:"administrationRoute"`
	Dose                           *float64            `json:"dose,omitempty"`
	IsDoseAnEstimate               bool                `json:"isDoseAnEstimate"`
	EstimatedDoseStandardDeviation *float64            `json:"estimatedDoseStandardDeviation,omitempty"`
	Units                          string              `json:"units"`
	ExperienceID                   uint                `gorm:"index" json:"experienceId"`
	Notes                          string              `json:"notes,omitempty"`
	StomachFullness                *StomachFullness    `json:"stomachFullness,omitempty"`
	ConsumerName                   *string             `json:"consumerName,omitempty"`
	CustomUnitID                   *uint               `gorm:"index" json:"customUnitId,omitempty"`
	CustomRecipeID                 *uint               `gorm:"index" json:"customRecipeId,omitempty"`
	RecipeGroupID                  *string             `gorm:"index" json:"recipeGroupId,omitempty"`
}

// IsTimeRange reports whether the ingestion spans an interval rather than a point.
func (i Ingestion) IsTimeRange() bool {
	return i.EndTime != nil && i.EndTime.After(i.Time)
}

// Consumer returns the consumer name, falling back to self for the app user.
func (i Ingestion) Consumer(self string) string {
	if i.ConsumerName == nil || *i.ConsumerName == "" {
		return self
	}
	return *i.ConsumerName
}

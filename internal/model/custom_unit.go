package model

import "time"

// CustomUnit is a user-defined dose unit, e.g. "pill", tied to a substance and
// route. Dose is the amount of the substance's canonical unit in one custom unit.
type CustomUnit struct {
	ID                             uint                `gorm:"primaryKey" json:"id"`
	SubstanceName                  string              `gorm:"index" json:"substanceName"`
	Name                           string              `json:"name"`
	CreationDate                   time.Time           `json:"creationDate"`
	AdministrationRoute            AdministrationRoute `json:"administrationRoute"`
	Dose                           *float64            `json:"dose,omitempty"`
	EstimatedDoseStandardDeviation *float64            `json:"estimatedDoseStandardDeviation,omitempty"`
	IsEstimate                     bool                `json:"isEstimate"`
	IsArchived                     bool                `gorm:"default:false" json:"isArchived"`
	Unit                           string              `json:"unit"`
	UnitPlural                     string              `json:"unitPlural,omitempty"`
	OriginalUnit                   string              `json:"originalUnit"`
	Note                           string              `json:"note,omitempty"`
}

// UnitLabel picks the singular or plural unit name for the given amount.
func (u CustomUnit) UnitLabel(amount float64) string {
	if amount != 1 && u.UnitPlural != "" {
		return u.UnitPlural
	}
	return u.Unit
}

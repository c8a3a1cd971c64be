package model

// SubstanceCompanion holds display metadata for a substance name.
type SubstanceCompanion struct {
	SubstanceName string        `gorm:"primaryKey" json:"substanceName"`
	Color         AdaptiveColor `json:"color"`
}

// CustomSubstance is a user-defined substance missing from the predefined catalogue.
type CustomSubstance struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex" json:"name"`
	Units       string `json:"units"`
	Description string `json:"description"`
}

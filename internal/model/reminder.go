package model

import "time"

// IngestionReminder is a scheduled notification, independent of any experience.
// Time is a local HH:MM string. Date is only used by RepeatOnce, Weekday only by
// RepeatWeekly.
type IngestionReminder struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	Title               string              `json:"title"`
	Time                string              `json:"time"`
	RepeatPolicy        RepeatPolicy        `json:"repeatPolicy"`
	Weekday             time.Weekday        `json:"weekday"`
	Date                *time.Time          `json:"date,omitempty"`
	IsEnabled           bool                `json:"isEnabled"`
	SubstanceName       string              `json:"substanceName,omitempty"`
	Dose                *float64            `json:"dose,omitempty"`
	Units               string              `json:"units,omitempty"`
	AdministrationRoute AdministrationRoute `json:"administrationRoute,omitempty"`
	CreationDate        time.Time           `json:"creationDate"`
	LastFiredAt         *time.Time          `json:"lastFiredAt,omitempty"`
}

// HasDose reports whether the reminder carries a dose to take.
func (r IngestionReminder) HasDose() bool {
	return r.SubstanceName != "" && r.Dose != nil
}

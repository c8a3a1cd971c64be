package model

import (
	"time"

	"gorm.io/gorm"
)

// SQLite stores times as offset-bearing text and compares them as strings, so
// every row is written in UTC to keep ordering and range filters correct.

func utc(t *time.Time) {
	if t != nil && !t.IsZero() {
		*t = t.UTC()
	}
}

func (i *Ingestion) BeforeSave(*gorm.DB) error {
	utc(&i.Time)
	utc(i.EndTime)
	utc(&i.CreationDate)
	return nil
}

func (e *Experience) BeforeSave(*gorm.DB) error {
	utc(&e.SortDate)
	utc(&e.CreationDate)
	return nil
}

func (r *ShulginRating) BeforeSave(*gorm.DB) error {
	utc(&r.Time)
	utc(&r.CreationDate)
	return nil
}

func (n *TimedNote) BeforeSave(*gorm.DB) error {
	utc(&n.Time)
	utc(&n.CreationDate)
	return nil
}

func (p *TimedNotePhoto) BeforeSave(*gorm.DB) error {
	utc(&p.CreationDate)
	return nil
}

func (u *CustomUnit) BeforeSave(*gorm.DB) error {
	utc(&u.CreationDate)
	return nil
}

func (r *CustomRecipe) BeforeSave(*gorm.DB) error {
	utc(&r.CreationDate)
	return nil
}

// Date is a calendar day in the user's zone and is never range queried.
func (r *IngestionReminder) BeforeSave(*gorm.DB) error {
	utc(&r.CreationDate)
	utc(r.LastFiredAt)
	return nil
}

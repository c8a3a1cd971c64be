package model

import "time"

// Experience is a named session that owns ingestions, notes and ratings.
type Experience struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	CreationDate time.Time `json:"creationDate"`
	SortDate     time.Time `gorm:"index" json:"sortDate"`
	IsFavorite   bool      `gorm:"default:false" json:"isFavorite"`
	Location     Location  `gorm:"embedded;embeddedPrefix:location_" json:"location"`
}

// Location is where an experience took place. A zero Location means none was set.
type Location struct {
	Name      string   `json:"name,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
}

func (l Location) IsZero() bool {
	return l.Name == "" && l.Longitude == nil && l.Latitude == nil
}

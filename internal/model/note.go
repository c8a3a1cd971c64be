package model

import "time"

// ShulginRating is a timestamped rating on the Shulgin scale.
type ShulginRating struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	Time         time.Time           `json:"time"`
	CreationDate time.Time           `json:"creationDate"`
	Option       ShulginRatingOption `json:"option"`
	ExperienceID uint                `gorm:"index" json:"experienceId"`
}

// TimedNote is a free text note pinned to a point in an experience.
type TimedNote struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	CreationDate     time.Time        `json:"creationDate"`
	Time             time.Time        `json:"time"`
	Note             string           `json:"note"`
	Color            AdaptiveColor    `json:"color"`
	ExperienceID     uint             `gorm:"index" json:"experienceId"`
	IsPartOfTimeline bool             `json:"isPartOfTimeline"`
	Photos           []TimedNotePhoto `gorm:"foreignKey:TimedNoteID" json:"photos,omitempty"`
}

// TimedNotePhoto references an image file stored next to the database.
type TimedNotePhoto struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TimedNoteID  uint      `gorm:"index" json:"timedNoteId"`
	FilePath     string    `json:"filePath"`
	Caption      string    `json:"caption,omitempty"`
	CreationDate time.Time `json:"creationDate"`
}

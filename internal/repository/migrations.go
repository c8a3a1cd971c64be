package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// schemaMigration records a scripted data migration that already ran.
type schemaMigration struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	AppliedAt time.Time
}

type migration struct {
	version int
	name    string
	apply   func(tx *gorm.DB) error
}

// unitRewrite replaces a legacy unit string for one substance, or for every
// substance when substance is empty.
type unitRewrite struct {
	substance string
	from      string
	to        string
}

var legacyUnits = []unitRewrite{
	{from: "mcg", to: "µg"},
	{from: "ug", to: "µg"},
	{substance: "Alcohol", from: "mL EtOH", to: "mL"},
	{substance: "Cannabis", from: "mg THC", to: "mg"},
	{substance: "Caffeine", from: "mg caffeine", to: "mg"},
}

var migrations = []migration{
	{version: 1, name: "rewrite legacy unit strings", apply: rewriteUnits(legacyUnits)},
	{version: 2, name: "clear empty consumer names", apply: func(tx *gorm.DB) error {
		return tx.Exec("UPDATE ingestions SET consumer_name = NULL WHERE consumer_name = ''").Error
	}},
}

func rewriteUnits(rewrites []unitRewrite) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		for _, rw := range rewrites {
			targets := []struct {
				table, column, substanceColumn string
			}{
				{"ingestions", "units", "substance_name"},
				{"custom_units", "original_unit", "substance_name"},
				{"recipe_subcomponents", "units", "substance_name"},
			}
			for _, t := range targets {
				q := tx.Table(t.table).Where(t.column+" = ?", rw.from)
				if rw.substance != "" {
					q = q.Where(t.substanceColumn+" = ?", rw.substance)
				}
				if err := q.Update(t.column, rw.to).Error; err != nil {
					return fmt.Errorf("rewrite %s.%s: %w", t.table, t.column, err)
				}
			}
		}
		return nil
	}
}

// runMigrations applies every migration newer than the latest recorded one,
// each in its own transaction.
func runMigrations(db *gorm.DB, list []migration) error {
	var last schemaMigration
	err := db.Order("version DESC").First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range list {
		if m.version <= last.Version {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{Version: m.version, Name: m.name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Package transfer reads and writes the whole journal as one JSON document.
package transfer

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
)

// FormatVersion is written into every exported document.
const FormatVersion = 1

// Document is the export file layout.
type Document struct {
	Version             int                        `json:"version"`
	ExportedAt          time.Time                  `json:"exportedAt"`
	Experiences         []Experience               `json:"experiences"`
	SubstanceCompanions []model.SubstanceCompanion `json:"substanceCompanions"`
	CustomSubstances    []model.CustomSubstance    `json:"customSubstances"`
	CustomUnits         []model.CustomUnit         `json:"customUnits"`
	CustomRecipes       []model.CustomRecipe       `json:"customRecipes"`
	IngestionReminders  []model.IngestionReminder  `json:"ingestionReminders"`
}

// Experience nests everything an experience owns.
type Experience struct {
	model.Experience
	Ingestions []model.Ingestion     `json:"ingestions"`
	Ratings    []model.ShulginRating `json:"ratings"`
	TimedNotes []TimedNote           `json:"timedNotes"`
}

type TimedNote struct {
	CreationDate     time.Time           `json:"creationDate"`
	Time             time.Time           `json:"time"`
	Note             string              `json:"note"`
	Color            model.AdaptiveColor `json:"color"`
	IsPartOfTimeline bool                `json:"isPartOfTimeline"`
	Photos           []Photo             `json:"photos"`
}

// Photo carries the image bytes inline.
type Photo struct {
	Caption      string    `json:"caption,omitempty"`
	CreationDate time.Time `json:"creationDate"`
	Extension    string    `json:"extension"`
	Base64       string    `json:"base64"`
}

// newDocument converts a snapshot. readPhoto returns nil data for a missing file;
// such photos are left out.
func newDocument(data *repository.Dataset, exportedAt time.Time, readPhoto func(name string) ([]byte, error)) (*Document, error) {
	doc := &Document{
		Version:             FormatVersion,
		ExportedAt:          exportedAt,
		Experiences:         make([]Experience, 0, len(data.Experiences)),
		SubstanceCompanions: nonNil(data.Companions),
		CustomSubstances:    nonNil(data.CustomSubstances),
		CustomUnits:         nonNil(data.CustomUnits),
		CustomRecipes:       nonNil(data.CustomRecipes),
		IngestionReminders:  nonNil(data.Reminders),
	}
	for _, rec := range data.Experiences {
		exp := Experience{
			Experience: rec.Experience,
			Ingestions: nonNil(rec.Ingestions),
			Ratings:    nonNil(rec.Ratings),
			TimedNotes: make([]TimedNote, 0, len(rec.TimedNotes)),
		}
		for _, note := range rec.TimedNotes {
			out := TimedNote{
				CreationDate:     note.CreationDate,
				Time:             note.Time,
				Note:             note.Note,
				Color:            note.Color,
				IsPartOfTimeline: note.IsPartOfTimeline,
				Photos:           make([]Photo, 0, len(note.Photos)),
			}
			for _, p := range note.Photos {
				raw, err := readPhoto(p.FilePath)
				if err != nil {
					return nil, err
				}
				if raw == nil {
					continue
				}
				out.Photos = append(out.Photos, Photo{
					Caption:      p.Caption,
					CreationDate: p.CreationDate,
					Extension:    strings.TrimPrefix(filepath.Ext(p.FilePath), "."),
					Base64:       base64.StdEncoding.EncodeToString(raw),
				})
			}
			exp.TimedNotes = append(exp.TimedNotes, out)
		}
		doc.Experiences = append(doc.Experiences, exp)
	}
	return doc, nil
}

// dataset converts the document back. savePhoto stores decoded bytes and
// returns the file name to reference.
func (d *Document) dataset(savePhoto func(data []byte, ext string) (string, error)) (*repository.Dataset, error) {
	data := &repository.Dataset{
		Companions:       d.SubstanceCompanions,
		CustomSubstances: d.CustomSubstances,
		CustomUnits:      d.CustomUnits,
		CustomRecipes:    d.CustomRecipes,
		Reminders:        d.IngestionReminders,
	}
	for _, exp := range d.Experiences {
		rec := repository.ExperienceRecord{
			Experience: exp.Experience,
			Ingestions: exp.Ingestions,
			Ratings:    exp.Ratings,
		}
		for _, note := range exp.TimedNotes {
			tn := model.TimedNote{
				CreationDate:     note.CreationDate,
				Time:             note.Time,
				Note:             note.Note,
				Color:            note.Color,
				IsPartOfTimeline: note.IsPartOfTimeline,
			}
			for _, p := range note.Photos {
				raw, err := base64.StdEncoding.DecodeString(p.Base64)
				if err != nil {
					return nil, fmt.Errorf("decode photo of note %q: %w", note.Note, err)
				}
				name, err := savePhoto(raw, p.Extension)
				if err != nil {
					return nil, err
				}
				tn.Photos = append(tn.Photos, model.TimedNotePhoto{
					FilePath:     name,
					Caption:      p.Caption,
					CreationDate: p.CreationDate,
				})
			}
			rec.TimedNotes = append(rec.TimedNotes, tn)
		}
		data.Experiences = append(data.Experiences, rec)
	}
	return data, nil
}

// check reports references that point outside the document.
func (d *Document) check() error {
	units := make(map[uint]struct{}, len(d.CustomUnits))
	for _, u := range d.CustomUnits {
		units[u.ID] = struct{}{}
	}
	recipes := make(map[uint]struct{}, len(d.CustomRecipes))
	for _, r := range d.CustomRecipes {
		recipes[r.ID] = struct{}{}
		for _, sub := range r.Subcomponents {
			if sub.CustomUnitID == nil {
				continue
			}
			if _, ok := units[*sub.CustomUnitID]; !ok {
				return fmt.Errorf("%w: recipe %q uses unknown custom unit %d", errDangling, r.Name, *sub.CustomUnitID)
			}
		}
	}
	for _, exp := range d.Experiences {
		for _, ing := range exp.Ingestions {
			if ing.CustomUnitID != nil {
				if _, ok := units[*ing.CustomUnitID]; !ok {
					return fmt.Errorf("%w: ingestion %d uses unknown custom unit %d", errDangling, ing.ID, *ing.CustomUnitID)
				}
			}
			if ing.CustomRecipeID != nil {
				if _, ok := recipes[*ing.CustomRecipeID]; !ok {
					return fmt.Errorf("%w: ingestion %d uses unknown recipe %d", errDangling, ing.ID, *ing.CustomRecipeID)
				}
			}
		}
	}
	return nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"substance-journal/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "journal.db"), zap.NewNop(), 0)
	require.NoError(t, err, "open db")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db, NewTracker())
}

func ptr[T any](v T) *T { return &v }

var base = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func seedExperience(t *testing.T, s *Store, title string, substances ...string) *model.Experience {
	t.Helper()
	ctx := context.Background()
	exp := &model.Experience{Title: title, CreationDate: base, SortDate: base}
	require.NoError(t, s.Experiences.Create(ctx, exp))
	for i, name := range substances {
		ing := &model.Ingestion{
			SubstanceName:       name,
			Time:                base.Add(time.Duration(i) * time.Hour),
			CreationDate:        base.Add(time.Duration(i) * time.Hour),
			AdministrationRoute: model.RouteOral,
			Dose:                ptr(10.0),
			Units:               "mg",
			ExperienceID:        exp.ID,
		}
		require.NoError(t, s.Ingestions.Create(ctx, ing))
		require.NoError(t, s.Companions.CreateIfMissing(ctx, &model.SubstanceCompanion{SubstanceName: name, Color: model.ColorBlue}))
	}
	return exp
}

func TestDeleteExperienceCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exp := seedExperience(t, s, "evening", "Caffeine", "Theanine")
	other := seedExperience(t, s, "morning", "Caffeine")

	require.NoError(t, s.Notes.CreateRating(ctx, &model.ShulginRating{ExperienceID: exp.ID, Option: model.RatingPlus, Time: base}))
	note := &model.TimedNote{
		ExperienceID: exp.ID, Note: "calm", Time: base,
		Photos: []model.TimedNotePhoto{{FilePath: "a.jpg"}, {FilePath: "b.jpg"}},
	}
	require.NoError(t, s.Notes.CreateTimedNote(ctx, note))

	photos, err := s.DeleteExperience(ctx, exp.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, photos)

	got, err := s.Experiences.Get(ctx, exp.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ings, err := s.Ingestions.ListByExperience(ctx, exp.ID)
	require.NoError(t, err)
	assert.Empty(t, ings)

	ratings, err := s.Notes.ListRatings(ctx, exp.ID)
	require.NoError(t, err)
	assert.Empty(t, ratings)

	notes, err := s.Notes.ListTimedNotes(ctx, exp.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	// Theanine was only used in the deleted experience.
	companions, err := s.Companions.List(ctx)
	require.NoError(t, err)
	require.Len(t, companions, 1)
	assert.Equal(t, "Caffeine", companions[0].SubstanceName)

	remaining, err := s.Ingestions.ListByExperience(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestDeleteIngestionRemovesRecipeGroup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	exp := seedExperience(t, s, "mix")

	group := "group-1"
	var ids []uint
	for _, name := range []string{"Caffeine", "Theanine"} {
		ing := &model.Ingestion{SubstanceName: name, ExperienceID: exp.ID, Time: base, RecipeGroupID: &group, Units: "mg"}
		require.NoError(t, s.Ingestions.Create(ctx, ing))
		ids = append(ids, ing.ID)
	}
	single := &model.Ingestion{SubstanceName: "Caffeine", ExperienceID: exp.ID, Time: base, Units: "mg"}
	require.NoError(t, s.Ingestions.Create(ctx, single))

	removed, err := s.DeleteIngestion(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := s.Ingestions.ListByExperience(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, single.ID, left[0].ID)

	removed, err = s.DeleteIngestion(ctx, 9999)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeleteCustomUnitArchivesWhenReferenced(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	exp := seedExperience(t, s, "units")

	used := &model.CustomUnit{SubstanceName: "Caffeine", Name: "pill", Dose: ptr(100.0), Unit: "pill", OriginalUnit: "mg"}
	unused := &model.CustomUnit{SubstanceName: "Caffeine", Name: "cup", Dose: ptr(80.0), Unit: "cup", OriginalUnit: "mg"}
	require.NoError(t, s.CustomUnits.Create(ctx, used))
	require.NoError(t, s.CustomUnits.Create(ctx, unused))
	require.NoError(t, s.Ingestions.Create(ctx, &model.Ingestion{
		SubstanceName: "Caffeine", ExperienceID: exp.ID, CustomUnitID: &used.ID, Dose: ptr(1.0), Units: "mg", Time: base,
	}))

	archived, err := s.DeleteCustomUnit(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	archived, err = s.DeleteCustomUnit(ctx, unused.ID)
	require.NoError(t, err)
	assert.False(t, archived)

	active, err := s.CustomUnits.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.CustomUnits.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsArchived)
}

func TestDeleteCustomRecipe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	recipe := &model.CustomRecipe{
		Name: "focus", Unit: "capsule", AdministrationRoute: model.RouteOral,
		Subcomponents: []model.RecipeSubcomponent{
			{SubstanceName: "Caffeine", Dose: ptr(100.0), Units: "mg"},
			{SubstanceName: "Theanine", Dose: ptr(200.0), Units: "mg"},
		},
	}
	require.NoError(t, s.Recipes.Create(ctx, recipe))

	got, err := s.Recipes.Get(ctx, recipe.ID)
	require.NoError(t, err)
	require.Len(t, got.Subcomponents, 2)
	assert.Equal(t, "Caffeine", got.Subcomponents[0].SubstanceName)

	got.Subcomponents = got.Subcomponents[:1]
	require.NoError(t, s.Recipes.Update(ctx, got))
	got, err = s.Recipes.Get(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Len(t, got.Subcomponents, 1)

	archived, err := s.DeleteCustomRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.False(t, archived)

	got, err = s.Recipes.Get(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRenameSubstance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedExperience(t, s, "rename", "Coffee")
	require.NoError(t, s.CustomUnits.Create(ctx, &model.CustomUnit{SubstanceName: "Coffee", Name: "cup"}))

	require.NoError(t, s.RenameSubstance(ctx, "Coffee", "Caffeine"))

	n, err := s.Ingestions.CountBySubstance(ctx, "Caffeine")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	units, err := s.CustomUnits.ListBySubstance(ctx, "Caffeine")
	require.NoError(t, err)
	assert.Len(t, units, 1)

	old, err := s.Companions.Get(ctx, "Coffee")
	require.NoError(t, err)
	assert.Nil(t, old)
	renamed, err := s.Companions.Get(ctx, "Caffeine")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, model.ColorBlue, renamed.Color)
}

func TestReplaceAllThenSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedExperience(t, s, "to be replaced", "Nicotine")

	data := &Dataset{
		Experiences: []ExperienceRecord{{
			Experience: model.Experience{ID: 7, Title: "imported", CreationDate: base, SortDate: base},
			Ingestions: []model.Ingestion{{ID: 3, SubstanceName: "Caffeine", Time: base, Units: "mg", Dose: ptr(50.0), CustomUnitID: ptr(uint(2))}},
			Ratings:    []model.ShulginRating{{Option: model.RatingTwoPlus, Time: base}},
			TimedNotes: []model.TimedNote{{Note: "hello", Time: base, Photos: []model.TimedNotePhoto{{FilePath: "p.jpg"}}}},
		}},
		Companions:       []model.SubstanceCompanion{{SubstanceName: "Caffeine", Color: model.ColorRed}},
		CustomSubstances: []model.CustomSubstance{{Name: "Homebrew", Units: "mL"}},
		CustomUnits:      []model.CustomUnit{{ID: 2, SubstanceName: "Caffeine", Name: "pill", Dose: ptr(100.0)}},
		Reminders:        []model.IngestionReminder{{Title: "water", Time: "09:00", RepeatPolicy: model.RepeatDaily, IsEnabled: true}},
	}
	require.NoError(t, s.ReplaceAll(ctx, data))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Experiences, 1)
	rec := snap.Experiences[0]
	assert.Equal(t, uint(7), rec.Experience.ID)
	require.Len(t, rec.Ingestions, 1)
	assert.Equal(t, uint(7), rec.Ingestions[0].ExperienceID)
	assert.Equal(t, uint(2), *rec.Ingestions[0].CustomUnitID)
	require.Len(t, rec.Ratings, 1)
	require.Len(t, rec.TimedNotes, 1)
	require.Len(t, rec.TimedNotes[0].Photos, 1)
	assert.Len(t, snap.Companions, 1)
	assert.Len(t, snap.CustomSubstances, 1)
	assert.Len(t, snap.CustomUnits, 1)
	assert.Len(t, snap.Reminders, 1)

	n, err := s.Ingestions.CountBySubstance(ctx, "Nicotine")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMergeCustomSubstances(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CustomSubstances.Create(ctx, &model.CustomSubstance{Name: "Kratom tea", Units: "g"}))

	created, updated, err := s.MergeCustomSubstances(ctx, []model.CustomSubstance{
		{ID: 99, Name: "Kratom tea", Units: "mL", Description: "brewed"},
		{ID: 1, Name: "Kava", Units: "g"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)

	list, err := s.CustomSubstances.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Kava", list[0].Name)
	assert.Equal(t, "mL", list[1].Units)
	assert.Equal(t, "brewed", list[1].Description)
}

func TestUsageAndConsumers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedExperience(t, s, "usage", "Caffeine", "Theanine", "Caffeine")
	exp := seedExperience(t, s, "friend")
	require.NoError(t, s.Ingestions.Create(ctx, &model.Ingestion{
		SubstanceName: "Caffeine", ExperienceID: exp.ID, Time: base, ConsumerName: ptr("Sam"), Units: "mg",
	}))

	usage, err := s.Ingestions.Usage(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "Caffeine", usage[0].SubstanceName)
	assert.Equal(t, 3, usage[0].Count)
	assert.True(t, usage[0].LastUsed.Equal(base.Add(2*time.Hour)))

	consumers, err := s.Ingestions.Consumers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sam"}, consumers)
}

func TestLegacyUnitRewrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	exp := seedExperience(t, s, "legacy")
	require.NoError(t, s.Ingestions.Create(ctx,
		&model.Ingestion{SubstanceName: "LSD", Units: "ug", ExperienceID: exp.ID, Time: base},
		&model.Ingestion{SubstanceName: "Alcohol", Units: "mL EtOH", ExperienceID: exp.ID, Time: base},
		&model.Ingestion{SubstanceName: "Vinegar", Units: "mL EtOH", ExperienceID: exp.ID, Time: base},
	))

	require.NoError(t, rewriteUnits(legacyUnits)(s.DB()))

	ings, err := s.Ingestions.ListByExperience(ctx, exp.ID)
	require.NoError(t, err)
	units := map[string]string{}
	for _, ing := range ings {
		units[ing.SubstanceName] = ing.Units
	}
	assert.Equal(t, "µg", units["LSD"])
	assert.Equal(t, "mL", units["Alcohol"])
	assert.Equal(t, "mL EtOH", units["Vinegar"])
}

func TestMigrationsAreRecorded(t *testing.T) {
	s := newTestStore(t)

	var count int64
	require.NoError(t, s.DB().Model(&schemaMigration{}).Count(&count).Error)
	assert.EqualValues(t, len(migrations), count)

	// Re-running is a no-op.
	require.NoError(t, runMigrations(s.DB(), migrations))
	require.NoError(t, s.DB().Model(&schemaMigration{}).Count(&count).Error)
	assert.EqualValues(t, len(migrations), count)
}

func TestIngestionTimesAcrossOffsets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	exp := seedExperience(t, s, "Travel")

	east := time.FixedZone("+05", 5*3600)
	west := time.FixedZone("-02", -2*3600)
	for _, at := range []time.Time{
		time.Date(2024, 3, 1, 19, 0, 0, 0, west),  // 21:00Z
		time.Date(2024, 3, 1, 20, 30, 0, 0, east), // 15:30Z
		time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
	} {
		ing := &model.Ingestion{SubstanceName: "Caffeine", Time: at, CreationDate: at, AdministrationRoute: model.RouteOral, ExperienceID: exp.ID}
		require.NoError(t, s.Ingestions.Create(ctx, ing))
		assert.Equal(t, time.UTC, ing.Time.Location())
	}

	all, err := s.Ingestions.ListByExperience(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 15, all[0].Time.UTC().Hour())
	assert.Equal(t, 18, all[1].Time.UTC().Hour())
	assert.Equal(t, 21, all[2].Time.UTC().Hour())

	from := time.Date(2024, 3, 1, 22, 0, 0, 0, east) // 17:00Z
	window, err := s.Ingestions.ListBetween(ctx, from, from.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, 18, window[0].Time.UTC().Hour())
	assert.Equal(t, 21, window[1].Time.UTC().Hour())
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"substance-journal/internal/model"
)

func TestLogIngestionCreatesExperienceAndCompanion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewIngestionService(store)
	svc.now = fixedClock(base)

	ing, err := svc.LogIngestion(ctx, IngestionInput{
		SubstanceName: " Caffeine ",
		Route:         model.RouteOral,
		Dose:          ptr(100.0),
		Units:         "mg",
		Time:          base,
		ConsumerName:  "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Caffeine", ing.SubstanceName)
	assert.Nil(t, ing.ConsumerName)

	exp, err := store.Experiences.Get(ctx, ing.ExperienceID)
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, "Fri, 01 Mar 2024", exp.Title)

	companion, err := store.Companions.Get(ctx, "Caffeine")
	require.NoError(t, err)
	require.NotNil(t, companion)
	assert.NotEmpty(t, companion.Color)

	second, err := svc.LogIngestion(ctx, IngestionInput{
		Experience:    ExperienceTarget{ID: exp.ID},
		SubstanceName: "Caffeine",
		Route:         model.RouteOral,
		Time:          base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, exp.ID, second.ExperienceID)
	assert.Nil(t, second.Dose)

	again, err := store.Companions.Get(ctx, "Caffeine")
	require.NoError(t, err)
	assert.Equal(t, companion.Color, again.Color)
}

func TestLogIngestionValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewIngestionService(store)

	_, err := svc.LogIngestion(ctx, IngestionInput{Route: model.RouteOral})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Route: "TELEPATHIC"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Route: model.RouteOral, Dose: ptr(-1.0)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	end := base.Add(-time.Hour)
	_, err = svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Route: model.RouteOral, Time: base, EndTime: &end})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Route: model.RouteOral, Experience: ExperienceTarget{ID: 42}})
	assert.ErrorIs(t, err, ErrNotFound)

	exps, err := store.Experiences.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, exps, "failed logs must not leave experiences behind")
}

func TestLogIngestionWithCustomUnit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	svc := NewIngestionService(store)

	unit, err := catalog.CreateUnit(ctx, model.CustomUnit{
		SubstanceName:       "Caffeine",
		Name:                "tablet",
		AdministrationRoute: model.RouteOral,
		Dose:                ptr(200.0),
		OriginalUnit:        "mg",
	})
	require.NoError(t, err)

	ing, err := svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Dose: ptr(1.5), CustomUnitID: &unit.ID, Time: base})
	require.NoError(t, err)
	assert.Equal(t, model.RouteOral, ing.AdministrationRoute)
	assert.Equal(t, "mg", ing.Units)
	assert.Equal(t, 300.0, *CanonicalDose(*ing, unit).Amount)

	_, err = svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Theanine", Dose: ptr(1.0), CustomUnitID: &unit.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogRecipeSharesGroup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	svc := NewIngestionService(store)

	recipe, err := catalog.CreateRecipe(ctx, model.CustomRecipe{
		Name:                "Focus",
		AdministrationRoute: model.RouteOral,
		Subcomponents: []model.RecipeSubcomponent{
			{SubstanceName: "Caffeine", Dose: ptr(100.0), Units: "mg"},
			{SubstanceName: "Theanine", Dose: ptr(200.0), Units: "mg"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "serving", recipe.Unit)

	created, err := svc.LogRecipe(ctx, RecipeInput{RecipeID: recipe.ID, Dose: ptr(2.0), Time: base})
	require.NoError(t, err)
	require.Len(t, created, 2)

	group := created[0].RecipeGroupID
	require.NotNil(t, group)
	assert.Equal(t, *group, *created[1].RecipeGroupID)
	assert.Equal(t, 200.0, *created[0].Dose)
	assert.Equal(t, 400.0, *created[1].Dose)
	assert.Equal(t, created[0].ExperienceID, created[1].ExperienceID)

	for _, name := range []string{"Caffeine", "Theanine"} {
		c, err := store.Companions.Get(ctx, name)
		require.NoError(t, err)
		assert.NotNil(t, c, name)
	}

	n, err := svc.DeleteIngestion(ctx, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.DeleteIngestion(ctx, created[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogRecipeRejectsArchivedRecipe(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	svc := NewIngestionService(store)

	recipe, err := catalog.CreateRecipe(ctx, model.CustomRecipe{
		Name:                "Focus",
		AdministrationRoute: model.RouteOral,
		Subcomponents:       []model.RecipeSubcomponent{{SubstanceName: "Caffeine", Dose: ptr(100.0), Units: "mg"}},
	})
	require.NoError(t, err)
	_, err = svc.LogRecipe(ctx, RecipeInput{RecipeID: recipe.ID, Dose: ptr(1.0)})
	require.NoError(t, err)

	archived, err := catalog.DeleteRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	_, err = svc.LogRecipe(ctx, RecipeInput{RecipeID: recipe.ID, Dose: ptr(1.0)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIngestionMovesCompanion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewIngestionService(store)

	ing, err := svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Cafeine", Route: model.RouteOral, Dose: ptr(50.0), Units: "mg", Time: base})
	require.NoError(t, err)

	ing.SubstanceName = "Caffeine"
	require.NoError(t, svc.UpdateIngestion(ctx, ing))

	old, err := store.Companions.Get(ctx, "Cafeine")
	require.NoError(t, err)
	assert.Nil(t, old)
	fixed, err := store.Companions.Get(ctx, "Caffeine")
	require.NoError(t, err)
	assert.NotNil(t, fixed)
}

func TestUpdateIngestionValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	svc := NewIngestionService(store)

	unit, err := catalog.CreateUnit(ctx, model.CustomUnit{
		SubstanceName: "Caffeine", Name: "tablet", AdministrationRoute: model.RouteOral,
		Dose: ptr(200.0), OriginalUnit: "mg",
	})
	require.NoError(t, err)
	ing, err := svc.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Route: model.RouteOral, Dose: ptr(50.0), Units: "mg", Time: base})
	require.NoError(t, err)

	before := base.Add(-time.Hour)
	missing := uint(999)
	cases := map[string]func(m *model.Ingestion){
		"blank name":    func(m *model.Ingestion) { m.SubstanceName = " " },
		"negative dose": func(m *model.Ingestion) { m.Dose = ptr(-1.0) },
		"end before":    func(m *model.Ingestion) { m.EndTime = &before },
		"bad route":     func(m *model.Ingestion) { m.AdministrationRoute = "EARS" },
		"foreign unit":  func(m *model.Ingestion) { m.SubstanceName = "Theanine"; m.CustomUnitID = &unit.ID },
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			edited := *ing
			edit(&edited)
			assert.ErrorIs(t, svc.UpdateIngestion(ctx, &edited), ErrInvalidInput)
		})
	}

	edited := *ing
	edited.CustomUnitID = &missing
	assert.ErrorIs(t, svc.UpdateIngestion(ctx, &edited), ErrNotFound)

	stored, err := svc.Get(ctx, ing.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, *stored.Dose)

	edited = *ing
	edited.CustomUnitID = &unit.ID
	edited.Dose = ptr(2.0)
	edited.Units = "g"
	require.NoError(t, svc.UpdateIngestion(ctx, &edited))
	assert.Equal(t, "mg", edited.Units)
}

func TestUpdateIngestionKeepsRecipeLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	svc := NewIngestionService(store)

	recipe, err := catalog.CreateRecipe(ctx, model.CustomRecipe{
		Name: "Focus", AdministrationRoute: model.RouteOral,
		Subcomponents: []model.RecipeSubcomponent{
			{SubstanceName: "Caffeine", Dose: ptr(100.0), Units: "mg"},
			{SubstanceName: "Theanine", Dose: ptr(200.0), Units: "mg"},
		},
	})
	require.NoError(t, err)
	created, err := svc.LogRecipe(ctx, RecipeInput{RecipeID: recipe.ID, Dose: ptr(1.0), Time: base})
	require.NoError(t, err)
	require.Len(t, created, 2)

	edited := created[0]
	edited.RecipeGroupID = nil
	edited.CustomRecipeID = nil
	edited.Notes = "with breakfast"
	require.NoError(t, svc.UpdateIngestion(ctx, &edited))

	stored, err := svc.Get(ctx, edited.ID)
	require.NoError(t, err)
	assert.Equal(t, "with breakfast", stored.Notes)
	require.NotNil(t, stored.RecipeGroupID)
	assert.Equal(t, *created[0].RecipeGroupID, *stored.RecipeGroupID)
	assert.Equal(t, recipe.ID, *stored.CustomRecipeID)

	n, err := svc.DeleteIngestion(ctx, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

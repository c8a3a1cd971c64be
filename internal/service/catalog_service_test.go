package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"substance-journal/internal/model"
)

func TestDeleteUnitArchivesWhenUsed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	ingestions := NewIngestionService(store)

	used, err := catalog.CreateUnit(ctx, model.CustomUnit{SubstanceName: "Caffeine", Name: "tablet", AdministrationRoute: model.RouteOral, Dose: ptr(100.0), OriginalUnit: "mg"})
	require.NoError(t, err)
	assert.Equal(t, "tablet", used.Unit)
	unused, err := catalog.CreateUnit(ctx, model.CustomUnit{SubstanceName: "Caffeine", Name: "drop", AdministrationRoute: model.RouteOral, OriginalUnit: "mg"})
	require.NoError(t, err)

	_, err = ingestions.LogIngestion(ctx, IngestionInput{SubstanceName: "Caffeine", Dose: ptr(1.0), CustomUnitID: &used.ID, Time: base})
	require.NoError(t, err)

	archived, err := catalog.DeleteUnit(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	archived, err = catalog.DeleteUnit(ctx, unused.ID)
	require.NoError(t, err)
	assert.False(t, archived)

	active, err := catalog.ListUnits(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := catalog.ListUnits(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsArchived)

	_, err = catalog.DeleteUnit(ctx, unused.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUnitValidation(t *testing.T) {
	catalog := NewCatalogService(newTestStore(t))
	ctx := context.Background()

	for name, unit := range map[string]model.CustomUnit{
		"no substance": {Name: "pill", AdministrationRoute: model.RouteOral},
		"no name":      {SubstanceName: "Caffeine", AdministrationRoute: model.RouteOral},
		"bad route":    {SubstanceName: "Caffeine", Name: "pill"},
		"zero dose":    {SubstanceName: "Caffeine", Name: "pill", AdministrationRoute: model.RouteOral, Dose: ptr(0.0)},
		"negative sd":  {SubstanceName: "Caffeine", Name: "pill", AdministrationRoute: model.RouteOral, EstimatedDoseStandardDeviation: ptr(-1.0)},
	} {
		_, err := catalog.CreateUnit(ctx, unit)
		assert.ErrorIs(t, err, ErrInvalidInput, name)
	}
}

func TestRecipeSubcomponentTakesUnitOriginalUnit(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(newTestStore(t))

	unit, err := catalog.CreateUnit(ctx, model.CustomUnit{SubstanceName: "Theanine", Name: "capsule", AdministrationRoute: model.RouteOral, Dose: ptr(200.0), OriginalUnit: "mg"})
	require.NoError(t, err)

	recipe, err := catalog.CreateRecipe(ctx, model.CustomRecipe{
		Name:                "Stack",
		AdministrationRoute: model.RouteOral,
		Subcomponents: []model.RecipeSubcomponent{
			{SubstanceName: "Theanine", Dose: ptr(1.0), CustomUnitID: &unit.ID, Units: "whatever"},
		},
	})
	require.NoError(t, err)

	got, err := catalog.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	require.Len(t, got.Subcomponents, 1)
	assert.Equal(t, "mg", got.Subcomponents[0].Units)

	_, err = catalog.CreateRecipe(ctx, model.CustomRecipe{
		Name:                "Wrong",
		AdministrationRoute: model.RouteOral,
		Subcomponents:       []model.RecipeSubcomponent{{SubstanceName: "Caffeine", CustomUnitID: &unit.ID}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = catalog.CreateRecipe(ctx, model.CustomRecipe{Name: "Empty", AdministrationRoute: model.RouteOral})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateSubstanceRenamesReferences(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := NewCatalogService(store)
	ingestions := NewIngestionService(store)

	sub, err := catalog.CreateSubstance(ctx, model.CustomSubstance{Name: "Homebrew", Units: "mL"})
	require.NoError(t, err)
	_, err = catalog.CreateSubstance(ctx, model.CustomSubstance{Name: "Homebrew"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ing, err := ingestions.LogIngestion(ctx, IngestionInput{SubstanceName: "Homebrew", Route: model.RouteOral, Dose: ptr(5.0), Units: "mL", Time: base})
	require.NoError(t, err)

	sub.Name = "Kombucha"
	require.NoError(t, catalog.UpdateSubstance(ctx, *sub))

	got, err := ingestions.Get(ctx, ing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kombucha", got.SubstanceName)

	companion, err := store.Companions.Get(ctx, "Kombucha")
	require.NoError(t, err)
	assert.NotNil(t, companion)
}

func TestPhotoStore(t *testing.T) {
	photos := NewPhotoStore(filepath.Join(t.TempDir(), "photos"))

	name, err := photos.Save([]byte("png-bytes"), ".PNG")
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(name))

	data, err := photos.Read(name)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	_, err = photos.Read("../journal.db")
	assert.Error(t, err)

	other, err := photos.Save([]byte("jpeg"), "")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(other))

	for _, ext := range []string{"./../../escaped", "a/b", "tar.gz", "averyverylongext"} {
		saved, err := photos.Save([]byte("x"), ext)
		require.NoError(t, err, ext)
		assert.Equal(t, ".jpg", filepath.Ext(saved), ext)
		assert.FileExists(t, filepath.Join(photos.Dir(), saved))
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(photos.Dir()), "escaped"))

	require.NoError(t, photos.Remove(name, "missing.jpg"))
	assert.NoFileExists(t, filepath.Join(photos.Dir(), name))

	require.NoError(t, photos.Clear())
	assert.NoFileExists(t, filepath.Join(photos.Dir(), other))
	require.NoError(t, NewPhotoStore(filepath.Join(t.TempDir(), "none")).Clear())
}

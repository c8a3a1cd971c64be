package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
	"substance-journal/internal/service"
)

var base = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type env struct {
	store  *repository.Store
	photos *service.PhotoStore
	svc    *Service
}

func newEnv(t *testing.T, maxBytes int64) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := repository.NewDB(filepath.Join(dir, "journal.db"), zap.NewNop(), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := repository.NewStore(db, repository.NewTracker())
	photos := service.NewPhotoStore(filepath.Join(dir, "photos"))
	svc := New(store, photos, maxBytes, zap.NewNop())
	svc.now = func() time.Time { return base }
	return &env{store: store, photos: photos, svc: svc}
}

func seed(t *testing.T, e *env) {
	t.Helper()
	ctx := context.Background()
	catalog := service.NewCatalogService(e.store)
	ingestions := service.NewIngestionService(e.store)
	exps := service.NewExperienceService(e.store, e.photos, "me", zap.NewNop())
	reminders := service.NewReminderService(e.store, nil, nil, nil)

	unit, err := catalog.CreateUnit(ctx, model.CustomUnit{
		SubstanceName: "Caffeine", Name: "tablet", AdministrationRoute: model.RouteOral,
		Dose: ptr(100.0), EstimatedDoseStandardDeviation: ptr(5.0), OriginalUnit: "mg",
	})
	require.NoError(t, err)
	recipe, err := catalog.CreateRecipe(ctx, model.CustomRecipe{
		Name: "Focus", AdministrationRoute: model.RouteOral,
		Subcomponents: []model.RecipeSubcomponent{
			{SubstanceName: "Caffeine", Dose: ptr(1.0), CustomUnitID: &unit.ID},
			{SubstanceName: "Theanine", Dose: ptr(200.0), Units: "mg"},
		},
	})
	require.NoError(t, err)
	_, err = catalog.CreateSubstance(ctx, model.CustomSubstance{Name: "Homebrew", Units: "mL", Description: "kombucha"})
	require.NoError(t, err)

	exp, err := exps.Create(ctx, eveningInput("Evening"))
	require.NoError(t, err)
	_, err = ingestions.LogIngestion(ctx, service.IngestionInput{
		Experience: service.ExperienceTarget{ID: exp.ID}, SubstanceName: "Caffeine",
		Dose: ptr(1.5), CustomUnitID: &unit.ID, Time: base, ConsumerName: "Alex",
	})
	require.NoError(t, err)
	_, err = ingestions.LogRecipe(ctx, service.RecipeInput{
		Experience: service.ExperienceTarget{ID: exp.ID}, RecipeID: recipe.ID, Dose: ptr(1.0), Time: base.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = exps.AddRating(ctx, exp.ID, model.RatingTwoPlus, base.Add(2*time.Hour))
	require.NoError(t, err)
	note, err := exps.AddTimedNote(ctx, exp.ID, service.TimedNoteInput{Note: "peak", Time: base.Add(90 * time.Minute), IsPartOfTimeline: true})
	require.NoError(t, err)
	_, err = exps.AddPhoto(ctx, note.ID, []byte{0x89, 'P', 'N', 'G'}, "png", "sunset")
	require.NoError(t, err)

	_, err = reminders.Create(ctx, service.ReminderInput{Title: "Morning", Time: "08:00", IsEnabled: true, SubstanceName: "Caffeine", Dose: ptr(100.0), Units: "mg"})
	require.NoError(t, err)
}

func eveningInput(title string) service.ExperienceInput {
	return service.ExperienceInput{Title: title, SortDate: base, Location: model.Location{Name: "Home", Latitude: ptr(52.5), Longitude: ptr(13.4)}}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newEnv(t, 0)
	seed(t, src)

	var first bytes.Buffer
	sum, err := src.svc.Export(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Experiences)
	assert.Equal(t, 3, sum.Ingestions)
	assert.Equal(t, 1, sum.Photos)

	dst := newEnv(t, 0)
	seed(t, dst) // replaced entirely by the import
	oldPhotos, err := os.ReadDir(dst.photos.Dir())
	require.NoError(t, err)
	require.Len(t, oldPhotos, 1)

	imported, err := dst.svc.Import(ctx, bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, sum, imported)

	var second bytes.Buffer
	_, err = dst.svc.Export(ctx, &second)
	require.NoError(t, err)
	assert.JSONEq(t, first.String(), second.String())

	files, err := os.ReadDir(dst.photos.Dir())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.NotEqual(t, oldPhotos[0].Name(), files[0].Name())

	var doc Document
	require.NoError(t, json.Unmarshal(second.Bytes(), &doc))
	require.Len(t, doc.Experiences, 1)
	assert.Equal(t, "Home", doc.Experiences[0].Location.Name)
	require.Len(t, doc.Experiences[0].TimedNotes, 1)
	require.Len(t, doc.Experiences[0].TimedNotes[0].Photos, 1)
	assert.Equal(t, "png", doc.Experiences[0].TimedNotes[0].Photos[0].Extension)
}

func TestImportKeepsPhotosInsideDir(t *testing.T) {
	ctx := context.Background()
	src := newEnv(t, 0)
	seed(t, src)
	var buf bytes.Buffer
	_, err := src.svc.Export(ctx, &buf)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	doc.Experiences[0].TimedNotes[0].Photos[0].Extension = "./../../escaped"
	hostile, err := json.Marshal(doc)
	require.NoError(t, err)

	dst := newEnv(t, 0)
	_, err = dst.svc.Import(ctx, bytes.NewReader(hostile))
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(filepath.Dir(dst.photos.Dir()), "escaped"))
	files, err := os.ReadDir(dst.photos.Dir())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".jpg", filepath.Ext(files[0].Name()))

	var again bytes.Buffer
	sum, err := dst.svc.Export(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Photos)
}

func TestExportUsesCamelCase(t *testing.T) {
	e := newEnv(t, 0)
	seed(t, e)

	var buf bytes.Buffer
	_, err := e.svc.Export(context.Background(), &buf)
	require.NoError(t, err)
	out := buf.String()
	for _, key := range []string{`"substanceCompanions"`, `"customUnits"`, `"recipeGroupId"`, `"timedNotes"`, `"isDoseAnEstimate"`, `"base64"`} {
		assert.Contains(t, out, key)
	}
	assert.NotContains(t, out, `"filePath"`)
}

func TestExportSkipsMissingPhotoFiles(t *testing.T) {
	e := newEnv(t, 0)
	seed(t, e)
	require.NoError(t, e.photos.Clear())

	var buf bytes.Buffer
	sum, err := e.svc.Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Zero(t, sum.Photos)
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("parse", func(t *testing.T) {
		e := newEnv(t, 0)
		_, err := e.svc.Import(ctx, strings.NewReader(`{"experiences": [`))
		assertKind(t, err, KindParse)
	})

	t.Run("wrong type", func(t *testing.T) {
		e := newEnv(t, 0)
		_, err := e.svc.Import(ctx, strings.NewReader(`{"experiences": 3}`))
		assertKind(t, err, KindParse)
	})

	t.Run("newer version", func(t *testing.T) {
		e := newEnv(t, 0)
		_, err := e.svc.Import(ctx, strings.NewReader(`{"version": 99}`))
		assertKind(t, err, KindParse)
	})

	t.Run("too large", func(t *testing.T) {
		e := newEnv(t, 16)
		_, err := e.svc.Import(ctx, strings.NewReader(`{"experiences": [], "customUnits": []}`))
		assertKind(t, err, KindOutOfMemory)
	})

	t.Run("dangling unit", func(t *testing.T) {
		e := newEnv(t, 0)
		doc := `{"experiences": [{"id": 1, "title": "x", "ingestions": [{"id": 1, "substanceName": "A", "customUnitId": 5}]}]}`
		_, err := e.svc.Import(ctx, strings.NewReader(doc))
		assertKind(t, err, KindConstraint)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		e := newEnv(t, 0)
		seed(t, e)
		doc := `{"experiences": [{"id": 1, "title": "a"}, {"id": 1, "title": "b"}]}`
		_, err := e.svc.Import(ctx, strings.NewReader(doc))
		assertKind(t, err, KindConstraint)

		exps, err := e.store.Experiences.List(ctx)
		require.NoError(t, err)
		assert.Len(t, exps, 1, "failed import keeps the previous journal")
	})

	t.Run("missing file", func(t *testing.T) {
		e := newEnv(t, 0)
		_, err := e.svc.ImportFile(ctx, filepath.Join(t.TempDir(), "nope.json"))
		assertKind(t, err, KindFileNotFound)
	})
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var te *Error
	require.True(t, errors.As(err, &te), "error %v is not classified", err)
	assert.Equal(t, kind, te.Kind)
	assert.NotEmpty(t, te.Message)
	assert.NotEmpty(t, te.Detail)
}

func TestExportImportFile(t *testing.T) {
	ctx := context.Background()
	src := newEnv(t, 0)
	seed(t, src)

	path := filepath.Join(t.TempDir(), "export.json")
	_, err := src.svc.ExportFile(ctx, path)
	require.NoError(t, err)
	assert.NoFileExists(t, path+".tmp")

	dst := newEnv(t, 0)
	sum, err := dst.svc.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Experiences)
}

func TestImportCustomSubstances(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)
	seed(t, e)

	created, updated, err := e.svc.ImportCustomSubstances(ctx, strings.NewReader(
		`[{"name": "Homebrew", "units": "L", "description": "updated"}, {"name": "Tea", "units": "cup"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)

	created, updated, err = e.svc.ImportCustomSubstances(ctx, strings.NewReader(
		`{"customSubstances": [{"name": "Mate", "units": "g"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Zero(t, updated)

	list, err := e.store.CustomSubstances.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	exps, err := e.store.Experiences.List(ctx)
	require.NoError(t, err)
	assert.Len(t, exps, 1, "merge leaves the journal alone")

	_, _, err = e.svc.ImportCustomSubstances(ctx, strings.NewReader(`[{"units": "g"}]`))
	assertKind(t, err, KindParse)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, KindFileNotFound, Classify(os.ErrNotExist).Kind)
	assert.Equal(t, KindConstraint, Classify(gorm.ErrDuplicatedKey).Kind)
	assert.Equal(t, KindIO, Classify(errors.New("disk on fire")).Kind)

	inner := Classify(errTooLarge)
	assert.Same(t, inner, Classify(inner))
}

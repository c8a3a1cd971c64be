package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
	"substance-journal/internal/service"
	"substance-journal/internal/transfer"
)

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
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
	svc := Services{
		Experiences: service.NewExperienceService(store, photos, "me", nil),
		Ingestions:  service.NewIngestionService(store),
		Suggestions: service.NewSuggestionService(store, 0),
		Catalog:     service.NewCatalogService(store),
		Reminders:   service.NewReminderService(store, nil, nil, nil),
		Transfer:    transfer.New(store, photos, 1<<20, nil),
	}
	return New(svc, Options{APIKey: apiKey, Registry: prometheus.NewRegistry()})
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAPIKey(t *testing.T) {
	s := newTestServer(t, "secret")

	w := do(t, s, http.MethodGet, "/api/experiences", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodGet, "/api/experiences", nil, "X-API-KEY", "secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogIngestionFlow(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodPost, "/api/ingestions", map[string]any{
		"experienceTitle":     "Coffee",
		"substanceName":       "Caffeine",
		"administrationRoute": "ORAL",
		"dose":                100,
		"units":               "mg",
		"time":                "2024-03-01T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ing := decode[model.Ingestion](t, w)
	assert.NotZero(t, ing.ExperienceID)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.ingestions))

	w = do(t, s, http.MethodGet, "/api/experiences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exps := decode[[]model.Experience](t, w)
	require.Len(t, exps, 1)
	assert.Equal(t, "Coffee", exps[0].Title)

	w = do(t, s, http.MethodGet, "/api/experiences/"+itoa(ing.ExperienceID)+"/doses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doses := decode[[]service.CumulativeDose](t, w)
	require.Len(t, doses, 1)
	assert.Equal(t, 100.0, doses[0].Amount)

	w = do(t, s, http.MethodGet, "/api/suggestions?q=caff", nil)
	require.Equal(t, http.StatusOK, w.Code)
	suggestions := decode[[]service.Suggestion](t, w)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Caffeine", suggestions[0].SubstanceName)

	w = do(t, s, http.MethodDelete, "/api/ingestions/"+itoa(ing.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted": 1}`, w.Body.String())
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodGet, "/api/experiences/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/experiences/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/experiences", map[string]any{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/experiences", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/import", `{"experiences": [`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	te := decode[transfer.Error](t, w)
	assert.Equal(t, transfer.KindParse, te.Kind)
	assert.NotEmpty(t, te.Message)
}

func TestExportImport(t *testing.T) {
	src := newTestServer(t, "")
	w := do(t, src, http.MethodPost, "/api/experiences", map[string]any{"title": "Evening", "sortDate": "2024-03-01T20:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, src, http.MethodPost, "/api/reminders", map[string]any{"title": "Morning", "time": "08:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reminder := decode[model.IngestionReminder](t, w)
	assert.True(t, reminder.IsEnabled)

	w = do(t, src, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	exported := w.Body.String()

	dst := newTestServer(t, "")
	w = do(t, dst, http.MethodPost, "/api/import", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sum := decode[transfer.Summary](t, w)
	assert.Equal(t, 1, sum.Experiences)
	assert.Equal(t, 1, sum.Reminders)
	assert.Equal(t, 1.0, testutil.ToFloat64(dst.metrics.transfers.WithLabelValues("import", "ok")))

	w = do(t, dst, http.MethodGet, "/api/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.IngestionReminder](t, w), 1)
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodPost, "/api/units", map[string]any{
		"substanceName": "Caffeine", "name": "tablet", "administrationRoute": "ORAL",
		"dose": 100, "unit": "tablet", "originalUnit": "mg",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	unit := decode[model.CustomUnit](t, w)

	w = do(t, s, http.MethodDelete, "/api/units/"+itoa(unit.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"archived": false}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/units/"+itoa(unit.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/import/substances", `[{"name": "Tea", "units": "cup"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"created": 1, "updated": 0}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/import/substances", `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `journal_transfers_total{direction="import_substances",result="ok"} 1`)
	assert.Contains(t, w.Body.String(), `journal_transfers_total{direction="import_substances",result="error"} 1`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "secret")
	do(t, s, http.MethodGet, "/api/experiences", nil, "X-API-KEY", "secret")

	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "journal_http_request_duration_seconds")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/draw"
	"github.com/minqi/luckydraw/internal/roster"
)

func newTestAPI(t *testing.T, names ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rs := roster.NewStore()
	for _, n := range names {
		rs.Add(n, 1)
	}
	engine := draw.NewEngine(draw.Config{
		Roster: rs,
		Rand:   rand.New(rand.NewSource(1)),
	})

	e := gin.New()
	New(Config{Engine: engine}).Register(e)
	return e
}

func do(t *testing.T, e *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case string:
		r = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(buf))
		r.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestAPI_ParticipantLifecycle(t *testing.T) {
	e := newTestAPI(t)

	w := do(t, e, http.MethodPost, "/api/participants", gin.H{"name": "Alice", "weight": 2})
	require.Equal(t, http.StatusOK, w.Code)

	var added struct {
		Added       bool               `json:"added"`
		Participant domain.Participant `json:"participant"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	require.True(t, added.Added)

	w = do(t, e, http.MethodPost, "/api/participants", gin.H{"name": "  "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":false`)

	w = do(t, e, http.MethodPost, fmt.Sprintf("/api/participants/%d/toggle-exclude", added.Participant.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, e, http.MethodGet, "/api/participants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total    int `json:"total"`
		Active   int `json:"active"`
		Excluded int `json:"excluded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 0, list.Active)
	assert.Equal(t, 1, list.Excluded)

	w = do(t, e, http.MethodDelete, fmt.Sprintf("/api/participants/%d", added.Participant.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, e, http.MethodDelete, "/api/participants/notanid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_ImportParticipants(t *testing.T) {
	e := newTestAPI(t)

	w := do(t, e, http.MethodPost, "/api/participants/import", "姓名\n张伟\n李娜,2\n张伟\n")
	require.Equal(t, http.StatusOK, w.Code)

	var rep roster.ImportReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 3, rep.Added)
	assert.Equal(t, 1, rep.Duplicates)

	w = do(t, e, http.MethodPost, "/api/participants/import", `[{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_ConfigPartialUpdate(t *testing.T) {
	e := newTestAPI(t, "a", "b", "c", "d", "e")

	w := do(t, e, http.MethodPut, "/api/config", gin.H{
		"classicCount":  3,
		"classicMethod": "batch",
		"prizeName":     "特等奖",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var cfg domain.DrawConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, 3, cfg.ClassicCount)
	assert.Equal(t, domain.MethodBatch, cfg.ClassicMethod)
	assert.Equal(t, 2, cfg.BatchSize)
	assert.Equal(t, "特等奖", cfg.PrizeName)
	assert.True(t, cfg.AutoExclude, "absent fields stay untouched")

	w = do(t, e, http.MethodPut, "/api/config", gin.H{"mode": "roulette"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_RoundEdits(t *testing.T) {
	e := newTestAPI(t, "a", "b", "c", "d", "e")

	w := do(t, e, http.MethodPost, "/api/config/rounds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var r domain.TournamentRound
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, 2, r.ID)

	w = do(t, e, http.MethodPut, "/api/config/rounds/1", gin.H{"count": 3, "name": "预选"})
	require.Equal(t, http.StatusOK, w.Code)
	var cfg domain.DrawConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	require.Len(t, cfg.TournamentRounds, 2)
	assert.Equal(t, 3, cfg.TournamentRounds[0].Count)
	assert.Equal(t, "预选", cfg.TournamentRounds[0].Name)

	w = do(t, e, http.MethodPut, "/api/config/rounds/99", gin.H{"count": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, e, http.MethodDelete, "/api/config/rounds/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, e, http.MethodDelete, "/api/config/rounds/1", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "the last round stays")
}

func TestAPI_DrawFlow(t *testing.T) {
	e := newTestAPI(t, "a", "b", "c")

	w := do(t, e, http.MethodPost, "/api/draw/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st draw.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.IsDrawing)

	w = do(t, e, http.MethodPost, "/api/draw/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.IsDrawing)
	assert.Len(t, st.Winners, 1)
	assert.True(t, st.SessionComplete)

	w = do(t, e, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Records []domain.HistoryRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Len(t, hist.Records, 1)

	w = do(t, e, http.MethodPost, "/api/draw/next-round", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "classic mode has no rounds")

	w = do(t, e, http.MethodPost, "/api/draw/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Empty(t, st.Winners)
}

func TestAPI_Exports(t *testing.T) {
	e := newTestAPI(t, "a")

	for _, path := range []string{"/api/participants/export", "/api/history/export"} {
		w := do(t, e, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=")
	}
}

func TestAPI_RequestIDHeader(t *testing.T) {
	e := newTestAPI(t)

	w := do(t, e, http.MethodGet, "/api/draw/state", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/api/draw/state", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Conceptual-Machines/magda-omr/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-omr/internal/metrics"
	"github.com/Conceptual-Machines/magda-omr/internal/midifile"
	"github.com/Conceptual-Machines/magda-omr/internal/models"
	"github.com/Conceptual-Machines/magda-omr/internal/music"
	"github.com/Conceptual-Machines/magda-omr/internal/services"
	"github.com/Conceptual-Machines/magda-omr/internal/vocab"
)

type memStore struct {
	mu        sync.Mutex
	records   []models.Conversion
	recentErr error
	lastLimit int
}

func (m *memStore) Record(_ context.Context, c *models.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *c)
	return nil
}

func (m *memStore) Recent(_ context.Context, limit int) ([]models.Conversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	out := make([]models.Conversion, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func setupTestRouter(t *testing.T, maxBody int64) (*gin.Engine, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	table, err := vocab.Default()
	require.NoError(t, err)
	svc := services.NewTranscriptionService(table, nil, nil)
	store := &memStore{}

	h := NewTranscriptionHandler(svc, store, maxBody)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	}, middleware.NoAuth())
	r.POST("/transcriptions", h.Create)
	r.GET("/transcriptions/recent", h.Recent)
	r.POST("/semantic", h.Semantic)
	return r, store
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreate_MIDIFromLabels(t *testing.T) {
	router, store := setupTestRouter(t, 1<<20)

	w := post(router, "/transcriptions", `{"labels": ["note_C4", "rest_quarter", "note_G4"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="converted.mid"`, w.Header().Get("Content-Disposition"))

	want := midifile.Encode(music.NewTranslator(nil).Translate([]string{"note_C4", "rest_quarter", "note_G4"}))
	assert.Equal(t, want, w.Body.Bytes())

	parsed, err := smf.ReadFrom(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, parsed.Tracks, 1)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "anonymous", rec.UserID)
	assert.Equal(t, models.SourceLabels, rec.Source)
	assert.Equal(t, 2, rec.Notes)
	assert.Equal(t, 1.5, rec.DurationBeats)
}

func TestCreate_JSONFromLogits(t *testing.T) {
	router, _ := setupTestRouter(t, 1<<20)

	// 14 classes; frames pick note_E4, note_E4, blank, barline
	frame := func(id int) []float32 {
		f := make([]float32, 14)
		f[id] = 2
		return f
	}
	body, err := json.Marshal(gin.H{
		"logits": [][]float32{frame(3), frame(3), frame(0), frame(11)},
		"format": "json",
	})
	require.NoError(t, err)

	w := post(router, "/transcriptions", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TranscriptionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, []int{3, 11}, resp.Tokens)
	assert.Equal(t, []string{"note_E4", "barline"}, resp.Labels)
	assert.Equal(t, "note_E4 barline", resp.SemanticText)
	require.Len(t, resp.Timeline, 2)
	assert.Equal(t, "note", resp.Timeline[0].Kind)
	assert.Equal(t, 64, *resp.Timeline[0].Pitch)
	assert.Equal(t, "barline", resp.Timeline[1].Kind)
	assert.Equal(t, 0.5, resp.Timeline[1].Time)
	assert.Equal(t, 4, resp.Stats.Timesteps)
	assert.Equal(t, len(resp.MIDI), resp.Stats.MIDIBytes)
	assert.True(t, bytes.HasPrefix(resp.MIDI, []byte("MThd")))
}

func TestCreate_BadRequests(t *testing.T) {
	router, store := setupTestRouter(t, 1<<20)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"labels": [`, ""},
		{"no input", `{"format": "midi"}`, models.ErrNoInput.Error()},
		{"two inputs", `{"labels": ["barline"], "tokens": [1]}`, models.ErrMultipleInput.Error()},
		{"unknown format", `{"labels": ["barline"], "format": "pdf"}`, models.ErrUnknownFormat.Error()},
		{"wrong width", `{"logits": [[0.5, 0.5]]}`, "invalid logits"},
		{"ragged", `{"logits": [[0,0,0,0,0,0,0,0,0,0,0,0,0,1], [1]]}`, "invalid logits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/transcriptions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	assert.Empty(t, store.records)
}

func TestCreate_BodyTooLarge(t *testing.T) {
	router, _ := setupTestRouter(t, 64)

	labels := make([]string, 50)
	for i := range labels {
		labels[i] = "note_C4"
	}
	body, err := json.Marshal(gin.H{"labels": labels})
	require.NoError(t, err)

	w := post(router, "/transcriptions", string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "too large")
}

func TestCreate_EmptyTokensYieldsValidFile(t *testing.T) {
	router, _ := setupTestRouter(t, 1<<20)

	w := post(router, "/transcriptions", `{"tokens": []}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, midifile.Encode(nil), w.Body.Bytes())
}

func TestSemantic(t *testing.T) {
	router, _ := setupTestRouter(t, 1<<20)

	w := post(router, "/semantic", `{"tokens": [13, 12, 1, 0, 99, 11]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "key_C_major time_4_4 note_C4 barline", w.Body.String())
}

func TestRecent(t *testing.T) {
	router, store := setupTestRouter(t, 1<<20)

	post(router, "/transcriptions", `{"labels": ["note_C4"]}`)
	post(router, "/transcriptions", `{"labels": ["note_D4", "note_E4"]}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/recent?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conversions []models.Conversion `json:"conversions"`
		Count       int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Conversions[0].Notes)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/recent?limit=5000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, store.lastLimit)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/recent?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.recentErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/recent", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(14, false).HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","vocabulary":{"size":14},"history":{"status":"disabled"}}`, w.Body.String())
}

func TestGetMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	counters := metrics.NewCounters()
	counters.Add(metrics.Conversion{Source: "labels", Notes: 3, MIDIBytes: 70})

	r := gin.New()
	r.GET("/api/metrics", NewMetricsHandler("v1.2.3", counters).GetMetrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
	assert.Equal(t, int64(1), resp.Conversions.Conversions)
	assert.Equal(t, int64(3), resp.Conversions.Notes)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5.00s", formatUptime(5*time.Second))
	assert.Equal(t, "2m3.50s", formatUptime(2*time.Minute+3500*time.Millisecond))
	assert.Equal(t, "1h0m1.00s", formatUptime(time.Hour+time.Second))
}

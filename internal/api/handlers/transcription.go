package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/magda-omr/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-omr/internal/database"
	"github.com/Conceptual-Machines/magda-omr/internal/logger"
	"github.com/Conceptual-Machines/magda-omr/internal/models"
	"github.com/Conceptual-Machines/magda-omr/internal/services"
)

type TranscriptionHandler struct {
	svc          *services.TranscriptionService
	store        database.ConversionStore
	maxBodyBytes int64
}

func NewTranscriptionHandler(svc *services.TranscriptionService, store database.ConversionStore, maxBodyBytes int64) *TranscriptionHandler {
	if store == nil {
		store = database.NoopStore{}
	}
	return &TranscriptionHandler{svc: svc, store: store, maxBodyBytes: maxBodyBytes}
}

// Create converts recognizer output and returns a MIDI file or its JSON view
func (h *TranscriptionHandler) Create(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	format, err := req.ResponseFormat()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, ok := h.run(c, req)
	if !ok {
		return
	}

	if format == models.FormatJSON {
		c.JSON(http.StatusOK, models.TranscriptionResponse{
			RequestID:    c.GetString("request_id"),
			Tokens:       t.Tokens,
			Labels:       t.Labels,
			SemanticText: t.SemanticText,
			Timeline:     models.NewTimelineView(t.Timeline),
			Stats:        t.Stats,
			MIDI:         t.MIDI,
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+midiFilename+`"`)
	c.Data(http.StatusOK, midiContentType, t.MIDI)
}

// Semantic returns only the space-separated label text
func (h *TranscriptionHandler) Semantic(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	t, ok := h.run(c, req)
	if !ok {
		return
	}

	c.String(http.StatusOK, t.SemanticText)
}

// Recent lists the newest conversion records
func (h *TranscriptionHandler) Recent(c *gin.Context) {
	limit := database.DefaultRecentLimit
	if raw := c.Query(recentLimitParam); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = database.ClampLimit(n)
	}

	conversions, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list conversions", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversions": conversions,
		"count":       len(conversions),
	})
}

func (h *TranscriptionHandler) bindRequest(c *gin.Context) (*models.TranscriptionRequest, bool) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req models.TranscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
				"limit": tooLarge.Limit,
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	return &req, true
}

func (h *TranscriptionHandler) run(c *gin.Context, req *models.TranscriptionRequest) (*services.Transcription, bool) {
	source, err := req.Source()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	ctx := c.Request.Context()
	start := time.Now()
	var t *services.Transcription
	switch source {
	case models.SourceLogits:
		t, err = h.svc.FromLogits(ctx, req.Logits)
	case models.SourceTokens:
		t, err = h.svc.FromTokens(ctx, req.Tokens)
	default:
		t, err = h.svc.FromLabels(ctx, req.Labels)
	}

	if err != nil {
		fields := logger.WithContext(c)
		fields["source"] = source
		switch {
		case errors.Is(err, services.ErrInvalidLogits):
			logger.Warn("Rejected logits", fields)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Warn("Transcription cancelled", fields)
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request cancelled"})
		default:
			logger.Error("Transcription failed", err, fields)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Transcription failed"})
		}
		return nil, false
	}

	h.remember(c, t, time.Since(start))
	return t, true
}

// remember stores the conversion. Failures are logged, not returned.
func (h *TranscriptionHandler) remember(c *gin.Context, t *services.Transcription, latency time.Duration) {
	userID, _ := middleware.GetUserID(c)
	record := &models.Conversion{
		RequestID:     c.GetString("request_id"),
		UserID:        userID,
		Source:        t.Source,
		Timesteps:     t.Stats.Timesteps,
		Tokens:        t.Stats.Tokens,
		Notes:         t.Stats.Notes,
		DurationBeats: t.Stats.DurationBeats,
		MIDIBytes:     t.Stats.MIDIBytes,
		SemanticText:  t.SemanticText,
		LatencyMs:     latency.Milliseconds(),
	}

	if err := h.store.Record(c.Request.Context(), record); err != nil {
		logger.Error("Failed to record conversion", err, logger.WithContext(c))
	}
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordConversion records one pass through the transcription pipeline
func (m *SentryMetrics) RecordConversion(ctx context.Context, c Conversion) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "transcription.convert")
	defer span.Finish()

	span.Description = fmt.Sprintf("Transcription: %s", c.Source)
	span.SetTag("source", c.Source)
	span.SetTag("success", fmt.Sprintf("%t", c.Err == nil))

	span.SetData("tokens", c.Tokens)
	span.SetData("notes", c.Notes)
	span.SetData("midi_bytes", c.MIDIBytes)
	span.SetData("duration_ms", c.Duration.Milliseconds())

	switch {
	case c.Err == nil:
		span.Status = sentry.SpanStatusOK
	case errors.Is(c.Err, context.Canceled):
		span.Status = sentry.SpanStatusCanceled
	default:
		span.Status = sentry.SpanStatusInvalidArgument
	}
}

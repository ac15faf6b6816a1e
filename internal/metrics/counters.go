package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Conversion describes one pipeline run
type Conversion struct {
	Source    string // logits, tokens or labels
	Tokens    int
	Notes     int
	MIDIBytes int
	Duration  time.Duration
	Err       error
}

// Counters keeps process-lifetime conversion totals for /api/metrics
type Counters struct {
	conversions atomic.Int64
	failures    atomic.Int64
	notes       atomic.Int64
	midiBytes   atomic.Int64

	mu       sync.Mutex
	bySource map[string]int64
}

// NewCounters returns zeroed counters
func NewCounters() *Counters {
	return &Counters{bySource: make(map[string]int64)}
}

// Add folds one conversion into the totals
func (c *Counters) Add(conv Conversion) {
	c.conversions.Add(1)
	if conv.Err != nil {
		c.failures.Add(1)
	} else {
		c.notes.Add(int64(conv.Notes))
		c.midiBytes.Add(int64(conv.MIDIBytes))
	}

	c.mu.Lock()
	c.bySource[conv.Source]++
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Conversions int64            `json:"conversions"`
	Failures    int64            `json:"failures"`
	Notes       int64            `json:"notes"`
	MIDIBytes   int64            `json:"midi_bytes"`
	BySource    map[string]int64 `json:"by_source"`
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	bySource := make(map[string]int64, len(c.bySource))
	for k, v := range c.bySource {
		bySource[k] = v
	}
	c.mu.Unlock()

	return Snapshot{
		Conversions: c.conversions.Load(),
		Failures:    c.failures.Load(),
		Notes:       c.notes.Load(),
		MIDIBytes:   c.midiBytes.Load(),
		BySource:    bySource,
	}
}

// Reporter fans a conversion out to Sentry, CloudWatch and the local
// counters. A nil CloudWatch client is skipped.
type Reporter struct {
	sentry     *SentryMetrics
	cloudwatch *Client
	counters   *Counters
}

func NewReporter(cw *Client) *Reporter {
	return &Reporter{
		sentry:     NewSentryMetrics(),
		cloudwatch: cw,
		counters:   NewCounters(),
	}
}

// RecordConversion records c with every backend
func (r *Reporter) RecordConversion(ctx context.Context, c Conversion) {
	r.counters.Add(c)
	r.sentry.RecordConversion(ctx, c)
	if r.cloudwatch != nil {
		r.cloudwatch.RecordConversion(c)
	}
}

// RecordAPIRequest forwards request metrics to CloudWatch
func (r *Reporter) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if r.cloudwatch != nil {
		r.cloudwatch.RecordAPIRequest(endpoint, statusCode, duration)
	}
}

// Counters exposes the in-process totals
func (r *Reporter) Counters() *Counters {
	return r.counters
}

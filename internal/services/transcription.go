package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Conceptual-Machines/magda-omr/internal/ctc"
	"github.com/Conceptual-Machines/magda-omr/internal/logger"
	"github.com/Conceptual-Machines/magda-omr/internal/metrics"
	"github.com/Conceptual-Machines/magda-omr/internal/midifile"
	"github.com/Conceptual-Machines/magda-omr/internal/models"
	"github.com/Conceptual-Machines/magda-omr/internal/music"
	"github.com/Conceptual-Machines/magda-omr/internal/vocab"
)

// ErrInvalidLogits wraps shape problems in a logits matrix
var ErrInvalidLogits = errors.New("invalid logits")

// Recorder receives one event per pipeline run
type Recorder interface {
	RecordConversion(ctx context.Context, c metrics.Conversion)
}

// Transcription is the result of one pipeline run
type Transcription struct {
	Source       string
	Tokens       []int
	Labels       []string
	SemanticText string
	Timeline     music.Timeline
	MIDI         []byte
	Stats        models.TranscriptionStats
}

// TranscriptionService turns recognizer output into a MIDI file:
// logits -> ids -> labels -> timeline -> SMF bytes. It holds only
// immutable tables and is safe for concurrent use.
type TranscriptionService struct {
	vocab      *vocab.Table
	translator *music.Translator
	recorder   Recorder
}

// NewTranscriptionService builds a service. A nil translator uses the
// default pitch table; a nil recorder disables metrics.
func NewTranscriptionService(v *vocab.Table, tr *music.Translator, rec Recorder) *TranscriptionService {
	if tr == nil {
		tr = music.NewTranslator(nil)
	}
	return &TranscriptionService{vocab: v, translator: tr, recorder: rec}
}

// Vocabulary returns the table used to map ids
func (s *TranscriptionService) Vocabulary() *vocab.Table {
	return s.vocab
}

// FromLogits decodes a T x V score matrix. V must equal the vocabulary size.
func (s *TranscriptionService) FromLogits(ctx context.Context, logits [][]float32) (*Transcription, error) {
	start := time.Now()

	if err := ctc.ValidateShape(logits, s.vocab.Size()); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidLogits, err)
		s.record(ctx, metrics.Conversion{Source: models.SourceLogits, Duration: time.Since(start), Err: err})
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.record(ctx, metrics.Conversion{Source: models.SourceLogits, Duration: time.Since(start), Err: err})
		return nil, err
	}

	ids := ctc.Decode(logits)
	return s.finish(ctx, models.SourceLogits, start, len(logits), ids, s.vocab.Labels(ids))
}

// FromTokens converts already decoded ids. Ids outside the vocabulary map
// to the unknown label and produce nothing.
func (s *TranscriptionService) FromTokens(ctx context.Context, ids []int) (*Transcription, error) {
	start := time.Now()
	return s.finish(ctx, models.SourceTokens, start, 0, ids, s.vocab.Labels(ids))
}

// FromLabels converts a label sequence directly. Tokens holds the ids of
// labels the vocabulary knows.
func (s *TranscriptionService) FromLabels(ctx context.Context, labels []string) (*Transcription, error) {
	start := time.Now()

	ids := make([]int, 0, len(labels))
	for _, label := range labels {
		if id, ok := s.vocab.ID(label); ok {
			ids = append(ids, id)
		}
	}
	return s.finish(ctx, models.SourceLabels, start, 0, ids, labels)
}

func (s *TranscriptionService) finish(ctx context.Context, source string, start time.Time, timesteps int, ids []int, labels []string) (*Transcription, error) {
	fail := func(err error) (*Transcription, error) {
		s.record(ctx, metrics.Conversion{Source: source, Tokens: len(ids), Duration: time.Since(start), Err: err})
		return nil, err
	}

	if ids == nil {
		ids = []int{}
	}
	if labels == nil {
		labels = []string{}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	for _, label := range labels {
		if music.IsFallbackRest(label) {
			logger.Debug("Rest without mapped duration", logger.Fields{
				"label":    label,
				"duration": music.DefaultRestDuration,
			})
		}
	}

	timeline, final, err := s.translator.TranslateContext(ctx, labels)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	data := midifile.Encode(timeline)

	t := &Transcription{
		Source:       source,
		Tokens:       ids,
		Labels:       labels,
		SemanticText: s.semanticText(source, ids, labels),
		Timeline:     timeline,
		MIDI:         data,
		Stats: models.TranscriptionStats{
			Timesteps:     timesteps,
			Tokens:        len(ids),
			Notes:         timeline.Count(music.KindNote),
			Barlines:      timeline.Count(music.KindBarline),
			DurationBeats: final.CurrentTime,
			MIDIBytes:     len(data),
		},
	}

	elapsed := time.Since(start)
	s.record(ctx, metrics.Conversion{
		Source:    source,
		Tokens:    t.Stats.Tokens,
		Notes:     t.Stats.Notes,
		MIDIBytes: t.Stats.MIDIBytes,
		Duration:  elapsed,
	})
	logger.LogConversion(ctx, source, elapsed, logger.Fields{
		"tokens": t.Stats.Tokens,
		"notes":  t.Stats.Notes,
		"beats":  t.Stats.DurationBeats,
	})

	return t, nil
}

// semanticText renders the space-separated label string. For label input
// the labels are kept as given, minus empties and the blank label.
func (s *TranscriptionService) semanticText(source string, ids []int, labels []string) string {
	if source != models.SourceLabels {
		return s.vocab.SemanticText(ids)
	}

	blank, _ := s.vocab.Label(vocab.BlankID)
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" || label == blank {
			continue
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

func (s *TranscriptionService) record(ctx context.Context, c metrics.Conversion) {
	if s.recorder != nil {
		s.recorder.RecordConversion(ctx, c)
	}
}

// Package music turns recognizer labels into a timed sequence of musical
// elements measured in quarter notes.
package music

import (
	"context"
	"strconv"
	"strings"
)

// Fixed grid. Only these two durations exist; there are no dotted values,
// ties or tuplets.
const (
	NoteDuration         = 0.5
	QuarterRestDuration  = 0.5
	DefaultRestDuration  = 0.25
	DefaultVelocity      = 80
	DefaultTimeSignature = "4/4"
	DefaultKey           = "C"
	DefaultMode          = "major"
)

// Label prefixes and literals understood by the translator.
const (
	prefixNote  = "note_"
	prefixRest  = "rest_"
	prefixTime  = "time_"
	prefixKey   = "key_"
	labelBar    = "barline"
	restQuarter = "quarter"
	restEighth  = "eighth"
)

// State is the accumulator threaded through a translation.
type State struct {
	CurrentTime   float64
	TimeSignature string
	Key           string
}

// InitialState is the state before the first label: time 0, 4/4, C.
func InitialState() State {
	return State{
		CurrentTime:   0,
		TimeSignature: DefaultTimeSignature,
		Key:           DefaultKey,
	}
}

// Translator maps labels to elements. It holds only immutable tables and is
// safe for concurrent use.
type Translator struct {
	pitches PitchTable
}

// NewTranslator creates a translator over the given pitch table. A nil
// table falls back to DefaultPitchTable.
func NewTranslator(pitches PitchTable) *Translator {
	if pitches == nil {
		pitches = DefaultPitchTable()
	}
	return &Translator{pitches: pitches}
}

// Translate folds labels into a Timeline. Unknown or malformed labels are
// skipped; it never fails.
func (tr *Translator) Translate(labels []string) Timeline {
	tl, _, _ := tr.TranslateContext(context.Background(), labels)
	return tl
}

// TranslateContext is Translate with cancellation checked between labels.
// It also returns the final state so callers can see trailing rests.
func (tr *Translator) TranslateContext(ctx context.Context, labels []string) (Timeline, State, error) {
	state := InitialState()
	tl := make(Timeline, 0, len(labels))
	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, state, err
		}
		var el Element
		state, el = tr.Step(state, label)
		if el != nil {
			tl = append(tl, el)
		}
	}
	return tl, state, nil
}

// Step applies one label to s and returns the new state and the element it
// produced, if any. Time never moves backwards.
func (tr *Translator) Step(s State, label string) (State, Element) {
	switch {
	case strings.HasPrefix(label, prefixNote):
		pitch, ok := tr.pitches.Lookup(strings.TrimPrefix(label, prefixNote))
		if !ok {
			return s, nil
		}
		note := Note{
			Pitch:     pitch,
			StartTime: s.CurrentTime,
			EndTime:   s.CurrentTime + NoteDuration,
			Velocity:  DefaultVelocity,
		}
		s.CurrentTime += NoteDuration
		return s, note

	case strings.HasPrefix(label, prefixRest):
		s.CurrentTime += RestDuration(strings.TrimPrefix(label, prefixRest))
		return s, nil

	case label == labelBar:
		return s, Barline{At: s.CurrentTime}

	case strings.HasPrefix(label, prefixTime):
		num, den, ok := parseMeter(strings.TrimPrefix(label, prefixTime))
		if !ok {
			return s, nil
		}
		sig := TimeSignature{At: s.CurrentTime, Numerator: num, Denominator: den}
		s.TimeSignature = sig.Signature()
		return s, sig

	case strings.HasPrefix(label, prefixKey):
		key, mode, ok := parseKey(strings.TrimPrefix(label, prefixKey))
		if !ok {
			return s, nil
		}
		s.Key = key
		return s, KeySignature{At: s.CurrentTime, Key: key, Mode: mode}
	}

	return s, nil
}

// RestDuration returns the length of a rest suffix: 0.5 for "quarter",
// 0.25 for everything else.
func RestDuration(suffix string) float64 {
	if suffix == restQuarter {
		return QuarterRestDuration
	}
	return DefaultRestDuration
}

// IsFallbackRest reports whether label is a rest whose suffix is not one of
// the mapped durations and was therefore given DefaultRestDuration.
func IsFallbackRest(label string) bool {
	if !strings.HasPrefix(label, prefixRest) {
		return false
	}
	suffix := strings.TrimPrefix(label, prefixRest)
	return suffix != restQuarter && suffix != restEighth
}

// parseMeter reads "<num>_<den>" with both parts positive integers.
func parseMeter(s string) (int, int, bool) {
	numStr, denStr, found := strings.Cut(s, "_")
	if !found {
		return 0, 0, false
	}
	num, err := strconv.Atoi(numStr)
	if err != nil || num <= 0 {
		return 0, 0, false
	}
	den, err := strconv.Atoi(denStr)
	if err != nil || den <= 0 {
		return 0, 0, false
	}
	return num, den, true
}

// parseKey reads "<tonic>[_<mode>]"; the mode defaults to major.
func parseKey(s string) (string, string, bool) {
	parts := strings.Split(s, "_")
	if parts[0] == "" {
		return "", "", false
	}
	mode := DefaultMode
	if len(parts) > 1 && parts[1] != "" {
		mode = parts[1]
	}
	return parts[0], mode, true
}

package models

import (
	"errors"

	"github.com/Conceptual-Machines/magda-omr/internal/music"
)

const (
	FormatMIDI = "midi"
	FormatJSON = "json"

	SourceLogits = "logits"
	SourceTokens = "tokens"
	SourceLabels = "labels"
)

var (
	ErrNoInput       = errors.New("one of logits, tokens or labels is required")
	ErrMultipleInput = errors.New("only one of logits, tokens or labels may be set")
	ErrUnknownFormat = errors.New(`format must be "midi" or "json"`)
)

// TranscriptionRequest carries recognizer output in one of three shapes
type TranscriptionRequest struct {
	Logits [][]float32 `json:"logits,omitempty"` // T x V scores per timestep
	Tokens []int       `json:"tokens,omitempty"` // already decoded ids
	Labels []string    `json:"labels,omitempty"` // already mapped labels
	Format string      `json:"format,omitempty"` // "midi" (default) or "json"
}

// Source reports which input is set. Exactly one must be present.
func (r *TranscriptionRequest) Source() (string, error) {
	var sources []string
	if r.Logits != nil {
		sources = append(sources, SourceLogits)
	}
	if r.Tokens != nil {
		sources = append(sources, SourceTokens)
	}
	if r.Labels != nil {
		sources = append(sources, SourceLabels)
	}

	switch len(sources) {
	case 0:
		return "", ErrNoInput
	case 1:
		return sources[0], nil
	default:
		return "", ErrMultipleInput
	}
}

// ResponseFormat returns the normalized format
func (r *TranscriptionRequest) ResponseFormat() (string, error) {
	switch r.Format {
	case "", FormatMIDI:
		return FormatMIDI, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", ErrUnknownFormat
	}
}

// TranscriptionStats summarizes a conversion
type TranscriptionStats struct {
	Timesteps     int     `json:"timesteps"`
	Tokens        int     `json:"tokens"`
	Notes         int     `json:"notes"`
	Barlines      int     `json:"barlines"`
	DurationBeats float64 `json:"duration_beats"`
	MIDIBytes     int     `json:"midi_bytes"`
}

// TranscriptionResponse is the JSON rendering of a conversion.
// MIDI is base64-encoded by encoding/json.
type TranscriptionResponse struct {
	RequestID    string             `json:"request_id"`
	Tokens       []int              `json:"tokens"`
	Labels       []string           `json:"labels"`
	SemanticText string             `json:"semantic_text"`
	Timeline     []ElementView      `json:"timeline"`
	Stats        TranscriptionStats `json:"stats"`
	MIDI         []byte             `json:"midi"`
}

// ElementView is a flat, tagged rendering of a music.Element
type ElementView struct {
	Kind string  `json:"kind"`
	Time float64 `json:"time"`

	// note
	Pitch    *int     `json:"pitch,omitempty"`
	EndTime  *float64 `json:"end_time,omitempty"`
	Velocity *int     `json:"velocity,omitempty"`

	// time signature
	Signature string `json:"signature,omitempty"`

	// key signature
	Key    string `json:"key,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Sharps *int   `json:"sharps,omitempty"`
}

// NewElementView renders one element
func NewElementView(e music.Element) ElementView {
	view := ElementView{Kind: e.Kind().String(), Time: e.Time()}

	switch el := e.(type) {
	case music.Note:
		view.Pitch = &el.Pitch
		view.EndTime = &el.EndTime
		view.Velocity = &el.Velocity
	case music.Barline:
	case music.TimeSignature:
		view.Signature = el.Signature()
	case music.KeySignature:
		sharps := el.Sharps()
		view.Key = el.Key
		view.Mode = el.Mode
		view.Sharps = &sharps
	}

	return view
}

// NewTimelineView renders a whole timeline; never nil
func NewTimelineView(tl music.Timeline) []ElementView {
	views := make([]ElementView, 0, len(tl))
	for _, e := range tl {
		views = append(views, NewElementView(e))
	}
	return views
}

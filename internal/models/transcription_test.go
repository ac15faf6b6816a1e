package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-omr/internal/music"
)

func TestTranscriptionRequest_Source(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"logits", `{"logits": [[0.1, 0.9]]}`, SourceLogits, nil},
		{"tokens", `{"tokens": [1, 2]}`, SourceTokens, nil},
		{"labels", `{"labels": ["note_C4"]}`, SourceLabels, nil},
		{"empty token list still counts", `{"tokens": []}`, SourceTokens, nil},
		{"none", `{"format": "json"}`, "", ErrNoInput},
		{"two", `{"tokens": [1], "labels": ["barline"]}`, "", ErrMultipleInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req TranscriptionRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			got, err := req.Source()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranscriptionRequest_ResponseFormat(t *testing.T) {
	for in, want := range map[string]string{"": FormatMIDI, "midi": FormatMIDI, "json": FormatJSON} {
		req := TranscriptionRequest{Format: in}
		got, err := req.ResponseFormat()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	req := TranscriptionRequest{Format: "musicxml"}
	_, err := req.ResponseFormat()
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNewTimelineView(t *testing.T) {
	tl := music.Timeline{
		music.KeySignature{At: 0, Key: "G", Mode: "major"},
		music.TimeSignature{At: 0, Numerator: 3, Denominator: 4},
		music.Note{Pitch: 67, StartTime: 0, EndTime: 0.5, Velocity: 80},
		music.Barline{At: 0.5},
	}

	data, err := json.Marshal(NewTimelineView(tl))
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"kind": "keySignature", "time": 0, "key": "G", "mode": "major", "sharps": 1},
		{"kind": "timeSignature", "time": 0, "signature": "3/4"},
		{"kind": "note", "time": 0, "pitch": 67, "end_time": 0.5, "velocity": 80},
		{"kind": "barline", "time": 0.5}
	]`, string(data))

	assert.NotNil(t, NewTimelineView(nil))
}

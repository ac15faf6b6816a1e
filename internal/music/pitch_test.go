package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPitchTable(t *testing.T) {
	table := DefaultPitchTable()

	expected := map[string]int{
		"C4": 60, "D4": 62, "E4": 64, "F4": 65,
		"G4": 67, "A4": 69, "B4": 71, "C5": 72,
	}
	assert.Equal(t, PitchTable(expected), table)

	_, ok := table.Lookup("C#4")
	assert.False(t, ok)
}

func TestNoteNameToMIDI(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"middle C", "C4", 60, false},
		{"sharp", "F#3", 54, false},
		{"flat", "Bb2", 46, false},
		{"lowercase", "e1", 28, false},
		{"lowest", "C-1", 0, false},
		{"too short", "C", 0, true},
		{"bad letter", "H4", 0, true},
		{"missing octave", "C#", 0, true},
		{"non numeric octave", "Cx", 0, true},
		{"out of range", "C10", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NoteNameToMIDI(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyNumber(t *testing.T) {
	assert.Equal(t, 0, KeyNumber("C", "major"))
	assert.Equal(t, 1, KeyNumber("G", "major"))
	assert.Equal(t, -3, KeyNumber("Eb", "major"))
	assert.Equal(t, -3, KeyNumber("C", "minor"))
	assert.Equal(t, 0, KeyNumber("A", "minor"))
	assert.Equal(t, 0, KeyNumber("H", "major"))

	assert.Equal(t, 2, KeySignature{Key: "D", Mode: "major"}.Sharps())
}

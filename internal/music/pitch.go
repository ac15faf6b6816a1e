package music

import (
	"fmt"
	"strings"
)

// PitchTable maps a note label suffix ("C4") to a MIDI note number.
// Tables are never mutated after construction and may be shared.
type PitchTable map[string]int

// diatonicNames is the recognizer's note range, C4 through C5.
var diatonicNames = []string{"C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5"}

// DefaultPitchTable returns the diatonic C4..C5 table (60..72).
func DefaultPitchTable() PitchTable {
	table := make(PitchTable, len(diatonicNames))
	for _, name := range diatonicNames {
		midiNote, err := NoteNameToMIDI(name)
		if err != nil {
			panic(fmt.Sprintf("music: bad built-in note name %q: %v", name, err))
		}
		table[name] = midiNote
	}
	return table
}

// Lookup returns the MIDI note for a label suffix.
func (p PitchTable) Lookup(name string) (int, bool) {
	n, ok := p[name]
	return n, ok
}

// NoteNameToMIDI converts a note name like "E1", "C4", "F#3", "Bb2" to MIDI note number
// Format: <note><accidental?><octave> where:
//   - note: A-G (case insensitive)
//   - accidental: # (sharp) or b (flat), optional
//   - octave: -1 to 9 (C4 = 60 = middle C)
func NoteNameToMIDI(noteName string) (int, error) {
	if len(noteName) < 2 {
		return 0, fmt.Errorf("note name too short: %s", noteName)
	}

	noteChar := strings.ToUpper(string(noteName[0]))
	semitone, ok := noteOffsets[noteChar]
	if !ok {
		return 0, fmt.Errorf("invalid note letter: %s", noteChar)
	}

	idx := 1
	if noteName[idx] == '#' {
		semitone++
		idx++
	} else if noteName[idx] == 'b' {
		semitone--
		idx++
	}

	if idx >= len(noteName) {
		return 0, fmt.Errorf("missing octave in note name: %s", noteName)
	}

	var octave int
	if _, err := fmt.Sscanf(noteName[idx:], "%d", &octave); err != nil {
		return 0, fmt.Errorf("invalid octave in note name %s: %w", noteName, err)
	}

	// C-1 = 0, C0 = 12, C4 = 60
	midiNote := (octave+1)*12 + semitone
	if midiNote < 0 || midiNote > 127 {
		return 0, fmt.Errorf("note %s out of MIDI range: %d", noteName, midiNote)
	}
	return midiNote, nil
}

// Note semitone offsets from C
var noteOffsets = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// Position of each major key on the circle of fifths; negative = flats.
var keyNumbers = map[string]int{
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5, "F#": 6, "C#": 7,
	"F": -1, "Bb": -2, "Eb": -3, "Ab": -4, "Db": -5, "Gb": -6, "Cb": -7,
}

// KeyNumber returns the accidental count for a key signature as written in
// a MIDI key-signature event: sharps positive, flats negative. Minor keys
// are shifted by three fifths. Unknown tonics count as C.
func KeyNumber(key, mode string) int {
	n := keyNumbers[key]
	if mode == "minor" {
		n -= 3
	}
	return n
}

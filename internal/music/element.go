package music

import "fmt"

// Kind identifies the variant of an Element.
type Kind int

const (
	KindNote Kind = iota
	KindBarline
	KindTimeSignature
	KindKeySignature
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindBarline:
		return "barline"
	case KindTimeSignature:
		return "timeSignature"
	case KindKeySignature:
		return "keySignature"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Element is one entry of a Timeline. The set of implementations is closed:
// only the types in this file satisfy it.
type Element interface {
	Kind() Kind
	// Time is the element's position in quarter notes.
	Time() float64
	isElement()
}

// Note is a sounding pitch over [StartTime, EndTime) in quarter notes.
type Note struct {
	Pitch     int
	StartTime float64
	EndTime   float64
	Velocity  int
}

// Barline marks a measure boundary. It does not move time.
type Barline struct {
	At float64
}

// TimeSignature records a meter change, e.g. 3/4.
type TimeSignature struct {
	At          float64
	Numerator   int
	Denominator int
}

// KeySignature records a key change. Mode is "major" or "minor".
type KeySignature struct {
	At   float64
	Key  string
	Mode string
}

func (Note) Kind() Kind          { return KindNote }
func (Barline) Kind() Kind       { return KindBarline }
func (TimeSignature) Kind() Kind { return KindTimeSignature }
func (KeySignature) Kind() Kind  { return KindKeySignature }

func (n Note) Time() float64          { return n.StartTime }
func (b Barline) Time() float64       { return b.At }
func (s TimeSignature) Time() float64 { return s.At }
func (k KeySignature) Time() float64  { return k.At }

func (Note) isElement()          {}
func (Barline) isElement()       {}
func (TimeSignature) isElement() {}
func (KeySignature) isElement()  {}

// Duration returns the note length in quarter notes.
func (n Note) Duration() float64 {
	return n.EndTime - n.StartTime
}

// Signature formats the meter as "num/den".
func (s TimeSignature) Signature() string {
	return fmt.Sprintf("%d/%d", s.Numerator, s.Denominator)
}

// Sharps returns the signed accidental count of the key (see KeyNumber).
func (k KeySignature) Sharps() int {
	return KeyNumber(k.Key, k.Mode)
}

// Timeline is the ordered output of one translation.
type Timeline []Element

// Notes returns the Note elements in timeline order.
func (tl Timeline) Notes() []Note {
	var notes []Note
	for _, el := range tl {
		if n, ok := el.(Note); ok {
			notes = append(notes, n)
		}
	}
	return notes
}

// Count returns how many elements of kind k the timeline holds.
func (tl Timeline) Count(k Kind) int {
	count := 0
	for _, el := range tl {
		if el.Kind() == k {
			count++
		}
	}
	return count
}

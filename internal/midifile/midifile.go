// Package midifile serializes a music.Timeline as a Standard MIDI File.
package midifile

import (
	"encoding/binary"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"

	"github.com/Conceptual-Machines/magda-omr/internal/music"
)

const (
	// TicksPerQuarter is the file's time division.
	TicksPerQuarter = 480
	// TempoBPM is written once at tick 0.
	TempoBPM = 120
	// Channel carries every note.
	Channel = 0

	// MaxVLQ is the largest value a MIDI variable-length quantity can hold.
	MaxVLQ = 0x0FFFFFFF

	formatSingleTrack = 0
	headerLength      = 6
	microsPerMinute   = 60_000_000
)

var (
	headerChunkID = []byte("MThd")
	trackChunkID  = []byte("MTrk")
)

// Meta events written at tick 0. The meter is always 4/4: signature
// elements in the timeline are not yet carried into the file.
var (
	// FF 58 04 nn dd cc bb: 4/4, denominator as a power of two, 24 MIDI
	// clocks per click, 8 32nds per quarter.
	timeSignatureMeta = []byte{0xFF, 0x58, 0x04, 4, 2, 24, 8}
	endOfTrackMeta    = []byte{0xFF, 0x2F, 0x00}
)

// event is a channel message at an absolute tick.
type event struct {
	tick uint32
	off  bool
	msg  []byte
}

// Encode renders the timeline as a format 0 SMF with one track. Only Note
// elements produce channel events. An empty timeline yields a valid file
// holding just the tempo and meter events.
func Encode(tl music.Timeline) []byte {
	track := encodeTrack(noteEvents(tl))

	buf := make([]byte, 0, 14+8+len(track))
	buf = append(buf, headerChunkID...)
	buf = binary.BigEndian.AppendUint32(buf, headerLength)
	buf = binary.BigEndian.AppendUint16(buf, formatSingleTrack)
	buf = binary.BigEndian.AppendUint16(buf, 1)
	buf = binary.BigEndian.AppendUint16(buf, TicksPerQuarter)

	buf = append(buf, trackChunkID...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(track)))
	return append(buf, track...)
}

// noteEvents returns note-on/off pairs ordered by tick. Notes are stably
// sorted by start time first, so notes sharing a start keep timeline
// order. At equal ticks note-offs come before note-ons, letting a repeated
// pitch retrigger.
func noteEvents(tl music.Timeline) []event {
	notes := tl.Notes()
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].StartTime < notes[j].StartTime
	})

	events := make([]event, 0, 2*len(notes))
	for _, n := range notes {
		start, end := noteSpan(QuarterToTicks(n.StartTime), QuarterToTicks(n.EndTime-n.StartTime))
		key := clamp7(n.Pitch)
		events = append(events,
			event{tick: start, msg: midi.NoteOn(Channel, key, clamp7(n.Velocity))},
			event{tick: end, off: true, msg: midi.NoteOff(Channel, key)},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
	return events
}

// encodeTrack builds the MTrk body: tempo and meter at tick 0, the channel
// events with delta times, then end-of-track.
func encodeTrack(events []event) []byte {
	track := make([]byte, 0, 32+len(events)*4)

	track = AppendVLQ(track, 0)
	track = append(track, tempoMeta(TempoBPM)...)
	track = AppendVLQ(track, 0)
	track = append(track, timeSignatureMeta...)

	var last uint32
	for _, ev := range events {
		track = AppendVLQ(track, ev.tick-last)
		track = append(track, ev.msg...)
		last = ev.tick
	}

	track = AppendVLQ(track, 0)
	return append(track, endOfTrackMeta...)
}

// tempoMeta returns FF 51 03 tt tt tt, microseconds per quarter note.
func tempoMeta(bpm int) []byte {
	us := uint32(microsPerMinute / bpm)
	return []byte{0xFF, 0x51, 0x03, byte(us >> 16), byte(us >> 8), byte(us)}
}

// QuarterToTicks converts quarter notes to ticks, rounding to nearest.
// Negative positions clamp to 0.
func QuarterToTicks(q float64) uint32 {
	t := math.Round(q * TicksPerQuarter)
	if t <= 0 {
		return 0
	}
	if t > MaxVLQ {
		return MaxVLQ
	}
	return uint32(t)
}

// noteSpan returns the on and off ticks of a note. A note that would end
// past MaxVLQ is moved back to end there with its length kept.
func noteSpan(start, duration uint32) (uint32, uint32) {
	if duration > MaxVLQ-start {
		return MaxVLQ - duration, MaxVLQ
	}
	return start, start + duration
}

// AppendVLQ appends v as a variable-length quantity: seven bits per byte,
// most significant group first, high bit set on every byte but the last.
// Values above MaxVLQ are clamped.
func AppendVLQ(dst []byte, v uint32) []byte {
	if v > MaxVLQ {
		v = MaxVLQ
	}
	var tmp [4]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[i:]...)
}

func clamp7(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

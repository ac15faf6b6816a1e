// Package ctc implements greedy CTC decoding of per-timestep class scores.
package ctc

import (
	"errors"
	"fmt"
)

// Blank is the class index reserved for the CTC blank symbol.
const Blank = 0

var (
	ErrRaggedFrames  = errors.New("ctc: frames have different widths")
	ErrWidthMismatch = errors.New("ctc: frame width does not match vocabulary size")
)

// Decode collapses a [T][V] logits matrix into token ids using Blank as the
// blank class. See DecodeWithBlank.
func Decode(logits [][]float32) []int {
	return DecodeWithBlank(logits, Blank)
}

// DecodeWithBlank picks the best class per timestep and emits it only when
// it is not blank and differs from the previous timestep's winner. A symbol
// separated from its last occurrence by a blank or another symbol is
// emitted again.
func DecodeWithBlank(logits [][]float32, blank int) []int {
	decoded := make([]int, 0, len(logits))
	prev := -1
	for _, frame := range logits {
		winner := Argmax(frame)
		if winner != blank && winner != prev {
			decoded = append(decoded, winner)
		}
		prev = winner
	}
	return decoded
}

// Argmax returns the index of the largest score. Ties go to the lowest
// index; an empty frame returns 0.
func Argmax(frame []float32) int {
	maxIdx := 0
	for i := 1; i < len(frame); i++ {
		if frame[i] > frame[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}

// ValidateShape checks that every frame has exactly width classes. An empty
// matrix is valid.
func ValidateShape(logits [][]float32, width int) error {
	for t, frame := range logits {
		if len(frame) != len(logits[0]) {
			return fmt.Errorf("%w: frame %d has %d classes, frame 0 has %d", ErrRaggedFrames, t, len(frame), len(logits[0]))
		}
	}
	if len(logits) > 0 && len(logits[0]) != width {
		return fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(logits[0]), width)
	}
	return nil
}

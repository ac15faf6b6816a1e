package ctc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// framesFor builds one-hot style frames whose argmax is each given winner.
func framesFor(width int, winners ...int) [][]float32 {
	logits := make([][]float32, len(winners))
	for t, w := range winners {
		frame := make([]float32, width)
		for i := range frame {
			frame[i] = -1
		}
		frame[w] = 3
		logits[t] = frame
	}
	return logits
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		winners []int
		want    []int
	}{
		{"empty", nil, []int{}},
		{"all blank", []int{0, 0, 0}, []int{}},
		{"collapse repeats", []int{1, 1, 1, 2, 2}, []int{1, 2}},
		{"reappears after other symbol", []int{1, 1, 2, 1}, []int{1, 2, 1}},
		{"reappears after blank", []int{3, 0, 3}, []int{3, 3}},
		{"blanks stripped", []int{0, 4, 0, 0, 5, 0}, []int{4, 5}},
		{"single frame", []int{7}, []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(framesFor(8, tt.winners...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_EmptyMatrixIsNotNil(t *testing.T) {
	got := Decode([][]float32{})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestArgmax_TieBreaksToLowestIndex(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float32{1, 1, 1, 1}))
	assert.Equal(t, 1, Argmax([]float32{0, 2, 2, 1}))
	assert.Equal(t, 2, Argmax([]float32{-5, -3, -1, -1}))
	assert.Equal(t, 0, Argmax(nil))
}

func TestDecode_AllEqualFrameIsBlank(t *testing.T) {
	logits := [][]float32{
		{0.1, 0.9, 0.0},
		{0.5, 0.5, 0.5},
		{0.1, 0.9, 0.0},
	}
	// The middle frame ties at index 0, the blank, so the symbol repeats.
	assert.Equal(t, []int{1, 1}, Decode(logits))
}

func TestDecodeWithBlank(t *testing.T) {
	logits := framesFor(4, 1, 3, 3, 2, 3)
	assert.Equal(t, []int{1, 2}, DecodeWithBlank(logits, 3))
}

func TestDecode_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		steps := rng.Intn(40)
		width := 1 + rng.Intn(6)
		logits := make([][]float32, steps)
		for s := range logits {
			logits[s] = make([]float32, width)
			for c := range logits[s] {
				// Coarse values so ties happen often.
				logits[s][c] = float32(rng.Intn(3))
			}
		}

		winners := make([]int, steps)
		for s, frame := range logits {
			winners[s] = Argmax(frame)
		}

		// Frames where a new run of a non-blank winner starts.
		var starts []int
		for s, w := range winners {
			if w != Blank && (s == 0 || winners[s-1] != w) {
				starts = append(starts, s)
			}
		}

		out := Decode(logits)
		require.LessOrEqual(t, len(out), steps)
		require.Len(t, out, len(starts))
		for i, sym := range out {
			require.NotEqual(t, Blank, sym, "blank emitted at %d", i)
			require.Equal(t, winners[starts[i]], sym)
			if i > 0 && out[i-1] == sym {
				// A repeated symbol is only emitted again after a blank frame.
				assert.Contains(t, winners[starts[i-1]:starts[i]], Blank,
					"repeat at %d without a separating blank", i)
			}
		}
	}
}

func TestValidateShape(t *testing.T) {
	assert.NoError(t, ValidateShape(nil, 14))
	assert.NoError(t, ValidateShape(framesFor(14, 1, 2), 14))

	err := ValidateShape(framesFor(13, 1), 14)
	assert.ErrorIs(t, err, ErrWidthMismatch)

	ragged := [][]float32{{0, 1, 2}, {0, 1}}
	err = ValidateShape(ragged, 3)
	assert.ErrorIs(t, err, ErrRaggedFrames)
}

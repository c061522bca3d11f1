package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-detect/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecode_TwoRecordsSevenClasses decodes the canonical two-record buffer
// of the 7-class vehicle part model.
func TestDecode_TwoRecordsSevenClasses(t *testing.T) {
	buffer := []float32{
		100, 100, 50, 50, 0.9, 0, 0, 0, 0, 0, 0, 9,
		300, 200, 40, 20, 0.7, 0, 3, 0, 0, 1, 0, 0,
	}

	candidates, err := Decode(buffer, 7, 0.5)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, images.Box{X: 75, Y: 75, Width: 50, Height: 50}, first.Box)
	assert.Equal(t, 6, first.ClassID)
	assert.Equal(t, float32(0.9), first.Confidence)

	second := candidates[1]
	assert.Equal(t, images.Box{X: 280, Y: 190, Width: 40, Height: 20}, second.Box)
	assert.Equal(t, 1, second.ClassID)
}

// TestDecode_StrictThreshold keeps only records strictly above the gate.
func TestDecode_StrictThreshold(t *testing.T) {
	buffer := []float32{
		10, 10, 4, 4, 0.5, 1,
		10, 10, 4, 4, 0.50001, 1,
		10, 10, 4, 4, 0.2, 1,
	}

	candidates, err := Decode(buffer, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Greater(t, candidates[0].Confidence, float32(0.5))
}

// TestDecode_ClampsCornerOnly clamps the corner at zero and leaves the size alone.
func TestDecode_ClampsCornerOnly(t *testing.T) {
	buffer := []float32{5, 2, 20, 30, 0.9, 1, 0}

	candidates, err := Decode(buffer, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, images.Box{X: 0, Y: 0, Width: 20, Height: 30}, candidates[0].Box)
}

// TestDecode_ArgmaxTies resolves equal class scores to the lowest index.
func TestDecode_ArgmaxTies(t *testing.T) {
	buffer := []float32{50, 50, 10, 10, 0.9, 0.2, 0.8, 0.8, 0.1}

	candidates, err := Decode(buffer, 4, 0.5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].ClassID)
}

func TestDecode_InvalidOutput(t *testing.T) {
	_, err := Decode(make([]float32, 13), 7, 0.5)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = Decode(make([]float32, 12), 0, 0.5)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	candidates, err := Decode(nil, 7, 0.5)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

// TestDecode_CountBound never yields more candidates than records, nor any at or below the gate.
func TestDecode_CountBound(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const numClasses = 7
	const stride = RecordHeader + numClasses

	for trial := 0; trial < 50; trial++ {
		records := r.Intn(64)
		buffer := make([]float32, records*stride)
		for i := range buffer {
			buffer[i] = r.Float32() * 640
		}
		for i := 0; i < records; i++ {
			buffer[i*stride+4] = r.Float32()
		}

		threshold := r.Float32()
		candidates, err := Decode(buffer, numClasses, threshold)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(candidates), records)
		for _, c := range candidates {
			assert.Greater(t, c.Confidence, threshold)
			assert.GreaterOrEqual(t, c.Box.X, float32(0))
			assert.GreaterOrEqual(t, c.Box.Y, float32(0))
			assert.True(t, c.ClassID >= 0 && c.ClassID < numClasses)
		}

		again, err := Decode(buffer, numClasses, threshold)
		require.NoError(t, err)
		assert.Equal(t, candidates, again)
	}
}

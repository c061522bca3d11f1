package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Box
		r2       Box
		expected float32
	}{
		{"Identical boxes", Box{0, 0, 100, 100}, Box{0, 0, 100, 100}, 1.0},
		{"No overlap", Box{0, 0, 100, 100}, Box{200, 200, 100, 100}, 0.0},
		{"Touching edges", Box{0, 0, 100, 100}, Box{100, 0, 100, 100}, 0.0},
		{"Half overlap", Box{0, 0, 100, 100}, Box{50, 0, 100, 100}, 1.0 / 3.0},
		{"Quarter overlap", Box{0, 0, 10, 10}, Box{5, 5, 10, 10}, 25.0 / 175.0},
		{"One inside other", Box{0, 0, 100, 100}, Box{25, 25, 50, 50}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 0.001)

			// IoU(A, B) must equal IoU(B, A).
			assert.Equal(t, result, CalculateIoU(tt.r2, tt.r1))
		})
	}
}

// TestIoU_vs_ImageRectangle compares our implementation against image.Rectangle
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   Box
		r2   Box
	}{
		{"No overlap", Box{0, 0, 100, 100}, Box{200, 200, 100, 100}},
		{"Partial overlap", Box{0, 0, 100, 100}, Box{50, 50, 100, 100}},
		{"Full overlap", Box{50, 50, 100, 100}, Box{50, 50, 100, 100}},
		{"One inside other", Box{0, 0, 100, 100}, Box{25, 25, 50, 50}},
		{"Large boxes", Box{0, 0, 1920, 1080}, Box{960, 540, 960, 540}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			customResult := CalculateIoU(tc.r1, tc.r2)
			imageResult := imageRectangleIoU(tc.r1.ToRect(), tc.r2.ToRect())
			assert.InDelta(t, imageResult, customResult, 0.0001)
		})
	}
}

// imageRectangleIoU implements IoU using Go's standard library image.Rectangle
func imageRectangleIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	intersectArea := intersect.Dx() * intersect.Dy()
	r1Area := r1.Dx() * r1.Dy()
	r2Area := r2.Dx() * r2.Dy()
	union := r1Area + r2Area - intersectArea

	return float32(intersectArea) / float32(union)
}

// TestIoU_EdgeCases tests edge cases and boundary conditions
func TestIoU_EdgeCases(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name string
		r1   Box
		r2   Box
	}{
		{"Zero area box 1", Box{0, 0, 0, 0}, Box{0, 0, 100, 100}},
		{"Zero area box 2", Box{0, 0, 100, 100}, Box{50, 50, 0, 0}},
		{"Both zero area", Box{0, 0, 0, 0}, Box{0, 0, 0, 0}},
		{"Negative size", Box{10, 10, -5, -5}, Box{0, 0, 20, 20}},
		{"Negative coordinates", Box{-100, -100, 100, 100}, Box{-50, -50, 100, 100}},
		{"Single pixel", Box{0, 0, 1, 1}, Box{0, 0, 1, 1}},
		{"Very large coordinates", Box{0, 0, 999999, 999999}, Box{500000, 500000, 499999, 499999}},
		{"NaN coordinate", Box{nan, 0, 10, 10}, Box{0, 0, 10, 10}},
		{"Infinite size", Box{0, 0, inf, inf}, Box{0, 0, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, result := range []float32{CalculateIoU(tt.r1, tt.r2), CalculateIoU(tt.r2, tt.r1)} {
				assert.False(t, math.IsNaN(float64(result)), "IoU is NaN")
				assert.GreaterOrEqual(t, result, float32(0))
				assert.LessOrEqual(t, result, float32(1))
			}
		})
	}

	assert.Equal(t, float32(0), CalculateIoU(Box{0, 0, 0, 0}, Box{0, 0, 0, 0}))
}

func TestBox_Helpers(t *testing.T) {
	b := Box{X: 10, Y: 20, Width: 30, Height: 40}

	assert.Equal(t, float32(1200), b.Area())
	assert.Equal(t, float32(0), Box{Width: -1, Height: 5}.Area())
	assert.Equal(t, Box{X: 20, Y: 10, Width: 60, Height: 20}, b.Scale(2, 0.5))
	assert.Equal(t, image.Rect(10, 20, 40, 60), b.ToRect())
}

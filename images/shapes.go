// Package images - Image processing utilities
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Box is an axis-aligned bounding box in corner-plus-size form.
//
// X and Y are the top-left corner. Width and Height are not clamped to any
// frame, so a box may extend past the image it was decoded for.
type Box struct {
	X      float32 `json:"x" yaml:"x"`
	Y      float32 `json:"y" yaml:"y"`
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// Area returns the area of the box. Boxes with a non-positive side have zero area.
func (b Box) Area() float32 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Max returns the bottom-right corner of the box.
func (b Box) Max() (float32, float32) {
	return b.X + b.Width, b.Y + b.Height
}

// Scale multiplies the corner and the size of the box per axis.
//
// Arguments:
//   - sx: The horizontal scale factor.
//   - sy: The vertical scale factor.
//
// Returns:
//   - Box: The scaled box.
func (b Box) Scale(sx, sy float32) Box {
	return Box{
		X:      b.X * sx,
		Y:      b.Y * sy,
		Width:  b.Width * sx,
		Height: b.Height * sy,
	}
}

// ToRect converts the box to an image.Rectangle for drawing.
//
// Fractional pixels are truncated, which is fine for overlays but should not be
// used for overlap math.
func (b Box) ToRect() image.Rectangle {
	x2, y2 := b.Max()
	return image.Rect(int(b.X), int(b.Y), int(x2), int(y2)).Canon()
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU answers "how much do these two rectangles overlap?" with a number in
// [0, 1]:
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// The intersection corners are the maximum of the top-left corners and the
// minimum of the bottom-right corners. A negative intersection side is clamped
// to zero, so disjoint boxes score 0.
//
// Zero-area boxes never produce NaN or Inf: when the union is not positive the
// IoU is defined as 0. The result is symmetric in its arguments.
//
// Arguments:
//   - r: The first box.
//   - o: The other box.
//
// Returns:
//   - float32: The IoU score in [0, 1].
//
// Example:
//
//	a := Box{X: 0, Y: 0, Width: 10, Height: 10}
//	b := Box{X: 5, Y: 5, Width: 10, Height: 10}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
func CalculateIoU(r, o Box) float32 {
	rx2, ry2 := r.Max()
	ox2, oy2 := o.Max()

	ix1 := math32.Max(r.X, o.X)
	iy1 := math32.Max(r.Y, o.Y)
	ix2 := math32.Min(rx2, ox2)
	iy2 := math32.Min(ry2, oy2)

	intersection := math32.Max(0, ix2-ix1) * math32.Max(0, iy2-iy1)
	union := r.Area() + o.Area() - intersection

	// Also catches NaN coordinates.
	if !(union > 0) {
		return 0
	}

	iou := intersection / union
	if math32.IsNaN(iou) || iou < 0 {
		return 0
	}
	return math32.Min(iou, 1)
}

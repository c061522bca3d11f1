package preprocess

import (
	"image"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
)

// ErrInvalidInput is returned for images or targets that cannot be preprocessed.
var ErrInvalidInput = errors.New("invalid preprocessing input")

// Interpolation selects how source pixels are sampled into the model input.
type Interpolation string

const (
	// InterpolationNearest samples the nearest source pixel. This is the default.
	InterpolationNearest Interpolation = "nearest"
	// InterpolationBilinear resamples with a bilinear filter.
	InterpolationBilinear Interpolation = "bilinear"
	// InterpolationLanczos3 resamples with a Lanczos filter of radius 3.
	InterpolationLanczos3 Interpolation = "lanczos3"
)

// ParseInterpolation validates an interpolation name. The empty string means nearest.
func ParseInterpolation(s string) (Interpolation, error) {
	switch Interpolation(strings.ToLower(s)) {
	case "", InterpolationNearest:
		return InterpolationNearest, nil
	case InterpolationBilinear:
		return InterpolationBilinear, nil
	case InterpolationLanczos3:
		return InterpolationLanczos3, nil
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown interpolation %q", s)
}

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// InputWidth is the expected width of the model input.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the expected height of the model input.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Interpolation is the resampling filter.
	Interpolation Interpolation `json:"interpolation" yaml:"interpolation"`
	// AlignCorners maps the last destination pixel onto the last source pixel
	// when sampling with nearest neighbour.
	AlignCorners bool `json:"align_corners" yaml:"align_corners"`
}

// Validate checks the target size and interpolation.
func (c *ModelConfig) Validate() error {
	if c == nil {
		return errors.Wrap(ErrInvalidInput, "config is nil")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Wrapf(ErrInvalidInput, "invalid target dimensions: %dx%d", c.InputWidth, c.InputHeight)
	}
	if _, err := ParseInterpolation(string(c.Interpolation)); err != nil {
		return err
	}
	return nil
}

// Tensor is a preprocessed image in planar RGB order with values in [0, 1].
type Tensor struct {
	// Data holds the R plane, then the G plane, then the B plane.
	Data []float32
	// Width is the model input width.
	Width int
	// Height is the model input height.
	Height int
	// OriginalWidth is the source image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the source image height before preprocessing.
	OriginalHeight int
}

// Shape returns the NCHW shape of the tensor.
func (t *Tensor) Shape() []int64 {
	return []int64{1, 3, int64(t.Height), int64(t.Width)}
}

// Size returns the model input size.
func (t *Tensor) Size() image.Point {
	return image.Pt(t.Width, t.Height)
}

// OriginalSize returns the source image size.
func (t *Tensor) OriginalSize() image.Point {
	return image.Pt(t.OriginalWidth, t.OriginalHeight)
}

// Preprocessor handles image preprocessing for ONNX models.
type Preprocessor struct {
	config ModelConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The model-specific preprocessing configuration.
//
// Returns:
// - A configured Preprocessor instance.
// - error wrapping ErrInvalidInput if the configuration is unusable.
//
// @example
//
//	preprocessor, err := NewPreprocessor(GetYOLOConfig(640))
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewPreprocessor(config *ModelConfig) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	if cfg.Interpolation == "" {
		cfg.Interpolation = InterpolationNearest
	}

	return &Preprocessor{config: cfg}, nil
}

// Config returns a copy of the preprocessing configuration.
func (p *Preprocessor) Config() ModelConfig {
	return p.config
}

// Preprocess converts an image into the model input tensor.
//
// The image is sampled to InputWidth x InputHeight and written as three
// planes (R, G, B), each value divided by 255. Alpha is ignored.
//
// Arguments:
// - img: The decoded input image.
//
// Returns:
// - The planar float32 tensor.
// - error wrapping ErrInvalidInput for nil or zero-sized images.
//
// @example
//
//	tensor, err := preprocessor.Preprocess(img)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(tensor.Shape()) // [1 3 640 640]
func (p *Preprocessor) Preprocess(img image.Image) (*Tensor, error) {
	if img == nil {
		return nil, errors.Wrap(ErrInvalidInput, "image is nil")
	}

	bounds := img.Bounds()
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid image dimensions: %dx%d", srcWidth, srcHeight)
	}

	width, height := p.config.InputWidth, p.config.InputHeight

	var sampled *image.NRGBA
	switch p.config.Interpolation {
	case InterpolationBilinear:
		sampled = imaging.Clone(resize.Resize(uint(width), uint(height), img, resize.Bilinear))
	case InterpolationLanczos3:
		sampled = imaging.Clone(resize.Resize(uint(width), uint(height), img, resize.Lanczos3))
	default:
		sampled = p.nearest(imaging.Clone(img))
	}

	return &Tensor{
		Data:           planar(sampled),
		Width:          width,
		Height:         height,
		OriginalWidth:  srcWidth,
		OriginalHeight: srcHeight,
	}, nil
}

// nearest samples src into a model-sized image by nearest neighbour.
func (p *Preprocessor) nearest(src *image.NRGBA) *image.NRGBA {
	width, height := p.config.InputWidth, p.config.InputHeight
	srcWidth, srcHeight := src.Rect.Dx(), src.Rect.Dy()

	xs := make([]int, width)
	for j := range xs {
		xs[j] = SourceIndex(j, width, srcWidth, p.config.AlignCorners)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	images.Parallel(height, 0, func(start, end int) {
		for i := start; i < end; i++ {
			y := SourceIndex(i, height, srcHeight, p.config.AlignCorners)
			srcRow := src.Pix[y*src.Stride:]
			dstRow := dst.Pix[i*dst.Stride:]
			for j, x := range xs {
				copy(dstRow[j*4:j*4+4], srcRow[x*4:x*4+4])
			}
		}
	})

	return dst
}

// planar writes the RGB channels of img as three normalized planes.
func planar(img *image.NRGBA) []float32 {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	images.Parallel(height, 0, func(start, end int) {
		for i := start; i < end; i++ {
			row := img.Pix[i*img.Stride:]
			for j := 0; j < width; j++ {
				idx := i*width + j
				px := row[j*4 : j*4+3]
				data[idx] = float32(px[0]) / 255
				data[plane+idx] = float32(px[1]) / 255
				data[2*plane+idx] = float32(px[2]) / 255
			}
		}
	})

	return data
}

// SourceIndex maps a destination pixel index onto the source axis.
//
// By default the source index is floor(dst / (dstSize/srcSize)) clamped to
// srcSize-1. With alignCorners the first and last pixels of both axes
// coincide: dst * (srcSize-1) / (dstSize-1).
//
// Arguments:
// - dst: The destination index in [0, dstSize).
// - dstSize: The destination axis length.
// - srcSize: The source axis length.
// - alignCorners: Whether to align the end pixels of both axes.
//
// Returns:
// - The source index in [0, srcSize).
//
// @example
// SourceIndex(639, 640, 1280, false) // 1278
// SourceIndex(639, 640, 1280, true)  // 1279
func SourceIndex(dst, dstSize, srcSize int, alignCorners bool) int {
	if srcSize <= 1 || dstSize <= 0 || dst <= 0 {
		return 0
	}

	var x int
	if alignCorners {
		if dstSize == 1 {
			return 0
		}
		x = dst * (srcSize - 1) / (dstSize - 1)
	} else {
		scale := float64(dstSize) / float64(srcSize)
		x = int(math.Floor(float64(dst) / scale))
	}

	if x > srcSize-1 {
		return srcSize - 1
	}
	return x
}

// GetYOLOConfig returns a standard configuration for square YOLO models.
//
// Arguments:
// - inputSize: The input size (typically 416 or 640).
//
// Returns:
// - A configured ModelConfig.
//
// @example
// config := GetYOLOConfig(640)
// preprocessor, err := NewPreprocessor(config)
func GetYOLOConfig(inputSize int) *ModelConfig {
	return &ModelConfig{
		Name:          "yolo",
		InputWidth:    inputSize,
		InputHeight:   inputSize,
		Interpolation: InterpolationNearest,
	}
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
// - imgs: Slice of images to preprocess.
// - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
// - Slice of tensors in input order.
// - error for the first image that fails.
func (p *Preprocessor) BatchPreprocess(imgs []image.Image, maxConcurrency int) ([]*Tensor, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*Tensor, len(imgs))
	errs := make([]error, len(imgs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range imgs {
		wg.Add(1)
		go func(idx int, img image.Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			tensor, err := p.Preprocess(img)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "failed to preprocess image %d", idx)
				return
			}
			results[idx] = tensor
		}(i, img)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

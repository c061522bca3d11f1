package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
)

// RecordHeader is the number of fields preceding the class scores in a record:
// x_center, y_center, width, height, objectness.
const RecordHeader = 5

// ErrInvalidOutput is returned when a model output buffer cannot be decoded.
var ErrInvalidOutput = errors.New("invalid model output")

// Decode turns a flat record-major prediction buffer into candidates.
//
// Each record is [xc, yc, w, h, objectness, class_0 .. class_{C-1}] in
// model-input pixels. A record is kept only when its objectness is strictly
// greater than threshold. The class is the argmax of the class scores, with
// ties resolved to the lowest index.
//
// The corner is clamped to be non-negative. Width and height are kept as
// reported, so a box may extend past the model-input frame.
//
// Arguments:
//   - buffer: The raw output, len(buffer) must be a multiple of 5+numClasses.
//   - numClasses: The number of class scores per record.
//   - threshold: The objectness gate. Its unit (logit or probability) must match the model.
//
// Returns:
//   - []Candidate: The kept candidates in buffer order.
//   - error: ErrInvalidOutput if the buffer shape does not match numClasses.
func Decode(buffer []float32, numClasses int, threshold float32) ([]Candidate, error) {
	if numClasses <= 0 {
		return nil, errors.Wrapf(ErrInvalidOutput, "numClasses must be positive, got %d", numClasses)
	}

	stride := RecordHeader + numClasses
	if len(buffer)%stride != 0 {
		return nil, errors.Wrapf(ErrInvalidOutput,
			"buffer length %d is not a multiple of record size %d", len(buffer), stride)
	}

	numRecords := len(buffer) / stride
	candidates := make([]Candidate, 0, numRecords)

	for i := 0; i < numRecords; i++ {
		record := buffer[i*stride : (i+1)*stride]

		objectness := record[4]
		if !(objectness > threshold) {
			continue
		}

		classID := argmax(record[RecordHeader:])
		if classID < 0 || classID >= numClasses {
			continue
		}

		xc, yc, w, h := record[0], record[1], record[2], record[3]

		candidates = append(candidates, Candidate{
			Box: images.Box{
				X:      math32.Max(0, xc-w/2),
				Y:      math32.Max(0, yc-h/2),
				Width:  w,
				Height: h,
			},
			Confidence: objectness,
			ClassID:    classID,
		})
	}

	return candidates, nil
}

// argmax returns the index of the largest score, first index on ties.
func argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

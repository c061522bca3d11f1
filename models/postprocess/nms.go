// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap at or above which a candidate is suppressed.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
	NumWorkers   int     `json:"num_workers" yaml:"num_workers"`     // Goroutines per IoU round. 1 or less runs sequentially.
}

// DefaultNMSConfig returns the cross-class, sequential configuration.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{
		IoUThreshold: 0.5,
		ClassAware:   false,
		NumWorkers:   1,
	}
}

// Suppress filters overlapping candidates using greedy Non-Maximum Suppression.
//
// Candidates are stable-sorted by descending confidence, so equal scores keep
// their input order. Each round takes the highest remaining candidate as a
// winner and builds a new remaining set from every candidate whose IoU with
// the winner is below config.IoUThreshold. Rounds repeat until nothing
// remains.
//
// The input slice is never reordered or modified.
//
// Arguments:
//   - candidates: The decoded candidates in any order.
//   - config: NMS configuration. A nil config uses DefaultNMSConfig.
//
// Returns:
//   - []Candidate: The winners in descending confidence order. Never nil.
func Suppress(candidates []Candidate, config *NMSConfig) []Candidate {
	if config == nil {
		config = DefaultNMSConfig()
	}

	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)

	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Confidence > remaining[j].Confidence
	})

	kept := make([]Candidate, 0, len(remaining))

	for len(remaining) > 0 {
		winner := remaining[0]
		kept = append(kept, winner)

		rest := remaining[1:]
		keep := survivors(winner, rest, config)

		next := make([]Candidate, 0, len(rest))
		for i, c := range rest {
			if keep[i] {
				next = append(next, c)
			}
		}
		remaining = next
	}

	return kept
}

// survivors marks which candidates outlive the winner of a round.
func survivors(winner Candidate, rest []Candidate, config *NMSConfig) []bool {
	keep := make([]bool, len(rest))

	check := func(start, end int) {
		for j := start; j < end; j++ {
			if config.ClassAware && rest[j].ClassID != winner.ClassID {
				keep[j] = true
				continue
			}
			keep[j] = images.CalculateIoU(winner.Box, rest[j].Box) < config.IoUThreshold
		}
	}

	if config.NumWorkers > 1 {
		images.Parallel(len(rest), config.NumWorkers, check)
	} else {
		check(0, len(rest))
	}

	return keep
}

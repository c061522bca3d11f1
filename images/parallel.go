package images

import (
	"runtime"
	"sync"
)

// Parallel executes fn across multiple goroutines, each receiving one
// contiguous partition of [0, dataSize).
//
// Arguments:
//   - dataSize: The size of the data to process.
//   - workers: The number of goroutines to use. Values below 1 use runtime.NumCPU().
//   - fn: Function to execute for each partition (receives start and end indices).
//
// Example:
//
//	Parallel(height, 0, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize, workers int, fn func(partStart, partEnd int)) {
	if dataSize <= 0 {
		return
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	// Small inputs are not worth the goroutine overhead.
	if workers == 1 || dataSize < workers*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / workers

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize

		// Last partition gets any remaining data.
		if i == workers-1 {
			partEnd = dataSize
		}

		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}

	wg.Wait()
}

// Package profiler - Rolling timing statistics for the detection pipeline.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxSamples is the rolling window used when none is given.
const DefaultMaxSamples = 600

// TimeTracker tracks operation timing statistics over a rolling window.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one TimeTracker.
type OperationStats struct {
	// Count is the number of recordings since start.
	Count int64 `json:"count"`
	// Samples is the number of recordings in the window.
	Samples int           `json:"samples"`
	Avg     time.Duration `json:"avg"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
}

// Snapshot is a point-in-time view of the profiler.
type Snapshot struct {
	Uptime     time.Duration             `json:"uptime"`
	Goroutines int                       `json:"goroutines"`
	HeapAlloc  uint64                    `json:"heap_alloc"`
	NumGC      uint32                    `json:"num_gc"`
	Operations map[string]OperationStats `json:"operations"`
	Counters   map[string]int64          `json:"counters"`
}

// Profiler records operation durations and event counters.
//
// It is safe for concurrent use.
type Profiler struct {
	mu         sync.RWMutex
	startTime  time.Time
	maxSamples int
	operations map[string]*TimeTracker
	counters   map[string]int64
}

// New creates a profiler.
//
// Arguments:
//   - maxSamples: The rolling window per operation. Zero or less uses DefaultMaxSamples.
//
// Returns:
//   - *Profiler: The profiler.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		startTime:  time.Now(),
		maxSamples: maxSamples,
		operations: make(map[string]*TimeTracker),
		counters:   make(map[string]int64),
	}
}

// StartOperation begins timing an operation.
//
// Returns:
//   - A function to call when the operation completes.
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation records the completion time of an operation.
func (p *Profiler) RecordOperation(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operations[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		p.operations[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > p.maxSamples {
		// Drop the oldest sample.
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Increment adds one to a named counter.
func (p *Profiler) Increment(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[name]++
}

// Snapshot returns the current statistics.
func (p *Profiler) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(p.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
		Operations: make(map[string]OperationStats, len(p.operations)),
		Counters:   make(map[string]int64, len(p.counters)),
	}
	for name, tracker := range p.operations {
		stats := OperationStats{
			Count:   tracker.count,
			Samples: len(tracker.durations),
			Min:     tracker.minTime,
			Max:     tracker.maxTime,
		}
		if stats.Samples > 0 {
			stats.Avg = tracker.totalTime / time.Duration(stats.Samples)
		}
		snap.Operations[name] = stats
	}
	for name, n := range p.counters {
		snap.Counters[name] = n
	}
	return snap
}

// Report logs a snapshot every interval until ctx is done.
func (p *Profiler) Report(ctx context.Context, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emitStatusReport(log)
		}
	}
}

// emitStatusReport logs one line per operation plus a runtime summary.
func (p *Profiler) emitStatusReport(log logrus.FieldLogger) {
	snap := p.Snapshot()

	fields := logrus.Fields{
		"uptime":     snap.Uptime.Truncate(time.Second),
		"goroutines": snap.Goroutines,
		"heap":       formatBytes(snap.HeapAlloc),
		"gc":         snap.NumGC,
	}
	for name, n := range snap.Counters {
		fields[name] = n
	}
	log.WithFields(fields).Info("profiler status")

	names := make([]string, 0, len(snap.Operations))
	for name := range snap.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := snap.Operations[name]
		log.WithFields(logrus.Fields{
			"operation": name,
			"avg":       stats.Avg.Truncate(time.Microsecond),
			"min":       stats.Min.Truncate(time.Microsecond),
			"max":       stats.Max.Truncate(time.Microsecond),
			"count":     stats.Count,
		}).Info("operation timing")
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

package profiler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	p := New(0)
	p.RecordOperation("inference", 10*time.Millisecond)
	p.RecordOperation("inference", 30*time.Millisecond)
	p.RecordOperation("inference", 20*time.Millisecond)

	stats := p.Snapshot().Operations["inference"]
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, 3, stats.Samples)
	assert.Equal(t, 20*time.Millisecond, stats.Avg)
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)
}

func TestRollingWindow(t *testing.T) {
	p := New(2)
	p.RecordOperation("decode", 100*time.Millisecond)
	p.RecordOperation("decode", 2*time.Millisecond)
	p.RecordOperation("decode", 4*time.Millisecond)

	stats := p.Snapshot().Operations["decode"]
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, 2, stats.Samples)
	assert.Equal(t, 3*time.Millisecond, stats.Avg)
	// Extremes cover every recording, not just the window.
	assert.Equal(t, 100*time.Millisecond, stats.Max)
}

func TestStartOperation(t *testing.T) {
	p := New(10)
	done := p.StartOperation("preprocess")
	time.Sleep(time.Millisecond)
	done()

	stats := p.Snapshot().Operations["preprocess"]
	assert.Equal(t, int64(1), stats.Count)
	assert.GreaterOrEqual(t, stats.Min, time.Millisecond)
}

func TestCountersConcurrent(t *testing.T) {
	p := New(10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Increment("requests")
				p.RecordOperation("total", time.Microsecond)
			}
		}()
	}
	wg.Wait()

	snap := p.Snapshot()
	assert.Equal(t, int64(800), snap.Counters["requests"])
	assert.Equal(t, int64(800), snap.Operations["total"].Count)
	assert.Equal(t, 10, snap.Operations["total"].Samples)
}

func TestReport(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := New(10)
	p.Increment("errors")
	p.RecordOperation("inference", 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Report(ctx, 5*time.Millisecond, logger)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(hook.AllEntries()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	entries := hook.AllEntries()
	assert.Equal(t, "profiler status", entries[0].Message)
	assert.Equal(t, int64(1), entries[0].Data["errors"])
	assert.Equal(t, logrus.InfoLevel, entries[1].Level)
	assert.Equal(t, "inference", entries[1].Data["operation"])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	r := NewRegistry()

	r.Incr("orders_submitted")
	r.Incr("orders_submitted")
	r.Add("orders_submitted", 3)

	snap := r.Snapshot()
	assert.Equal(t, int64(5), snap.Counters["orders_submitted"])
}

func TestObserveTracksCountAndMax(t *testing.T) {
	r := NewRegistry()

	r.Observe("checkout_duration", 10*time.Millisecond)
	r.Observe("checkout_duration", 30*time.Millisecond)

	snap := r.Snapshot()
	summary, ok := snap.Latencies["checkout_duration"]
	require.True(t, ok)
	assert.Equal(t, int64(2), summary.Count)
	assert.InDelta(t, 20, summary.AvgMillis, 1e-9)
	assert.InDelta(t, 30, summary.MaxMillis, 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Incr("refunds_processed")

	snap := r.Snapshot()
	snap.Counters["refunds_processed"] = 99

	assert.Equal(t, int64(1), r.Snapshot().Counters["refunds_processed"])
}

func TestConcurrentIncrements(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Incr("orders_submitted")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), r.Snapshot().Counters["orders_submitted"])
}

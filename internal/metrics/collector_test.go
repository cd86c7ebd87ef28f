package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRequest(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("http://e1", 300*time.Millisecond, 100, false)
	c.RecordRequest("http://e0", 100*time.Millisecond, 40, false)
	c.RecordRequest("http://e0", 200*time.Millisecond, 0, true)

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Requests)
	assert.Equal(t, int64(1), snap.Failures)
	require.Len(t, snap.Endpoints, 2)

	e0 := snap.Endpoints[0]
	assert.Equal(t, "http://e0", e0.Endpoint)
	assert.Equal(t, int64(2), e0.Count)
	assert.Equal(t, int64(1), e0.Failures)
	assert.Equal(t, int64(100), e0.MinTimeMs)
	assert.Equal(t, int64(200), e0.MaxTimeMs)
	assert.InDelta(t, 150, e0.AvgTimeMs, 0.001)
	assert.InDelta(t, 40, e0.AvgOutputBytes, 0.001)

	assert.Equal(t, "http://e1", snap.Endpoints[1].Endpoint)
}

func TestCollector_Empty(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Zero(t, snap.Requests)
	assert.Empty(t, snap.Endpoints)
}

func TestCollector_OnlyFailures(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("http://e0", time.Second, 0, true)

	e0 := c.Snapshot().Endpoints[0]
	assert.Equal(t, int64(1000), e0.MinTimeMs)
	assert.Zero(t, e0.AvgOutputBytes)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.RecordRequest("http://e0", time.Duration(i)*time.Millisecond, i, i%10 == 0)
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(100), snap.Requests)
	assert.Equal(t, int64(10), snap.Failures)
}

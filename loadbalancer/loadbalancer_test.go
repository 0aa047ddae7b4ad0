package loadbalancer

import (
	"testing"
	"time"

	"github.com/magiconair/properties/assert"
)

func TestSelectOnEmptyAvailableReturnsNoNode(t *testing.T) {
	lb := New()
	_, ok := lb.Select(nil, RoundRobin)
	assert.Equal(t, ok, false)
}

func TestRoundRobinCyclesSortedIDs(t *testing.T) {
	lb := New()
	var got []int
	for i := 0; i < 6; i++ {
		n, ok := lb.Select([]int{3, 1, 2}, RoundRobin)
		assert.Equal(t, ok, true)
		got = append(got, n)
	}
	assert.Equal(t, got, []int{1, 2, 3, 1, 2, 3})
}

func TestLeastLoadedPrefersFewerActiveQueries(t *testing.T) {
	lb := New()
	lb.RecordStart(1)
	lb.RecordStart(1)
	lb.RecordStart(2)

	n, ok := lb.Select([]int{1, 2}, LeastLoaded)
	assert.Equal(t, ok, true)
	assert.Equal(t, n, 2)
}

func TestLeastLoadedBreaksTiesOnMeanResponseTime(t *testing.T) {
	lb := New()
	lb.RecordStart(1)
	lb.RecordEnd(1, 500*time.Millisecond)
	lb.RecordStart(2)
	lb.RecordEnd(2, 100*time.Millisecond)

	n, ok := lb.Select([]int{1, 2}, LeastLoaded)
	assert.Equal(t, ok, true)
	assert.Equal(t, n, 2)
}

func TestResponseTimeRingIsCappedAtOneHundredSamples(t *testing.T) {
	lb := New()
	for i := 0; i < 150; i++ {
		lb.RecordEnd(1, time.Duration(i+1)*time.Millisecond)
	}
	lb.mu.Lock()
	n := len(lb.stats[1].samples)
	lb.mu.Unlock()
	assert.Equal(t, n, sampleCap)
}

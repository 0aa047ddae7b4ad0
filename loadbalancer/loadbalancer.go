// Package loadbalancer implements the read-path load balancer (§4.7):
// round-robin and least-loaded node selection over the set of nodes
// currently believed alive, with a capped response-time sample ring per
// node. Grounded on the teacher's participant/stats.go per-node sample
// bookkeeping, simplified from its percentile/ACP profiling down to the
// mean-response-time score the spec requires.
package loadbalancer

import (
	"sort"
	"sync"
	"time"
)

const sampleCap = 100

// Strategy selects among the available node ids.
type Strategy int

const (
	RoundRobin Strategy = iota
	LeastLoaded
)

type nodeStats struct {
	activeQueries int
	samples       []time.Duration // ring, newest overwrites oldest past sampleCap
	next          int
}

func (s *nodeStats) recordEnd(elapsed time.Duration) {
	if len(s.samples) < sampleCap {
		s.samples = append(s.samples, elapsed)
	} else {
		s.samples[s.next] = elapsed
		s.next = (s.next + 1) % sampleCap
	}
}

func (s *nodeStats) meanResponseTime() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.samples {
		sum += d
	}
	return float64(sum) / float64(len(s.samples)) / float64(time.Second)
}

func (s *nodeStats) score() float64 {
	return 10*float64(s.activeQueries) + s.meanResponseTime()
}

// LoadBalancer dispatches read queries across the set of nodes currently
// believed alive (§4.7).
type LoadBalancer struct {
	mu    sync.Mutex
	stats map[int]*nodeStats
	rrIdx int
}

// New returns an empty load balancer.
func New() *LoadBalancer {
	return &LoadBalancer{stats: make(map[int]*nodeStats)}
}

func (lb *LoadBalancer) statsFor(nodeID int) *nodeStats {
	s, ok := lb.stats[nodeID]
	if !ok {
		s = &nodeStats{}
		lb.stats[nodeID] = s
	}
	return s
}

// RecordStart marks the start of a dispatched query on node.
func (lb *LoadBalancer) RecordStart(node int) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.statsFor(node).activeQueries++
}

// RecordEnd marks the end of a dispatched query on node, recording elapsed
// into its capped response-time ring (§4.7: "capped at the last 100 samples
// per node").
func (lb *LoadBalancer) RecordEnd(node int, elapsed time.Duration) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	s := lb.statsFor(node)
	if s.activeQueries > 0 {
		s.activeQueries--
	}
	s.recordEnd(elapsed)
}

// Select picks a node from available using strategy. Returns (0, false) if
// available is empty (§4.7: "no node" for empty available set).
func (lb *LoadBalancer) Select(available []int, strategy Strategy) (int, bool) {
	if len(available) == 0 {
		return 0, false
	}
	switch strategy {
	case RoundRobin:
		return lb.selectRoundRobin(available)
	case LeastLoaded:
		return lb.selectLeastLoaded(available)
	default:
		return 0, false
	}
}

func (lb *LoadBalancer) selectRoundRobin(available []int) (int, bool) {
	sorted := append([]int(nil), available...)
	sort.Ints(sorted)

	lb.mu.Lock()
	defer lb.mu.Unlock()
	idx := lb.rrIdx % len(sorted)
	lb.rrIdx++
	return sorted[idx], true
}

func (lb *LoadBalancer) selectLeastLoaded(available []int) (int, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	best := available[0]
	bestScore := lb.statsFor(best).score()
	for _, n := range available[1:] {
		score := lb.statsFor(n).score()
		if score < bestScore {
			best = n
			bestScore = score
		}
	}
	return best, true
}

// Package election implements the Bully leader election protocol (§4.6).
// Grounded on the teacher's asynchronous-response-collection idiom in
// network/coordinator/txn_handler.go: higher peers are polled concurrently
// behind a sync.WaitGroup, each call bounded by its own response timeout, and
// the announcement wait is a deadline-bounded poll.
package election

import (
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"dqlcluster/configs"
)

// Transport is the subset of wire/transport election needs; kept as an
// interface so election can be unit-tested without real sockets.
type Transport interface {
	// SendElection sends an Election message to nodeID and reports whether
	// an Election_OK was received before responseTimeout.
	SendElection(nodeID int, responseTimeout time.Duration) bool
	// AnnounceCoordinator fire-and-forgets a Coordinator_Announcement to
	// every peer.
	AnnounceCoordinator(selfID int)
}

// Election runs the Bully protocol for one node.
type Election struct {
	selfID int
	peers  mapset.Set[int] // all other node ids in the cluster

	transport Transport

	mu            sync.Mutex
	coordinatorID int
	inProgress    bool
	announceSeq   uint64 // bumped only by HandleCoordinatorAnnouncement

	onRoleChange func(coordinatorID int, isCoordinator bool)

	responseTimeout time.Duration
	announceTimeout time.Duration
}

// New builds an Election for selfID over allNodeIDs (self is skipped), adopting
// coordinator_id = max(all_node_ids) at boot (§4.6).
func New(selfID int, allNodeIDs []int, transport Transport) *Election {
	peers := mapset.NewThreadUnsafeSet[int]()
	maxID := selfID
	for _, id := range allNodeIDs {
		if id == selfID {
			continue
		}
		peers.Add(id)
		if id > maxID {
			maxID = id
		}
	}
	return &Election{
		selfID:          selfID,
		peers:           peers,
		transport:       transport,
		coordinatorID:   maxID,
		responseTimeout: configs.ElectionResponseWait,
		announceTimeout: configs.ElectionAnnounceWait,
	}
}

// OnRoleChange registers the callback invoked outside any lock whenever the
// known coordinator changes.
func (e *Election) OnRoleChange(f func(coordinatorID int, isCoordinator bool)) {
	e.onRoleChange = f
}

// CoordinatorID returns the currently known coordinator.
func (e *Election) CoordinatorID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coordinatorID
}

// IsCoordinator reports whether self currently believes it is the
// coordinator.
func (e *Election) IsCoordinator() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coordinatorID == e.selfID
}

// BecomeCoordinatorAtBoot activates self as coordinator without running an
// election, per §4.6's boot-time rule ("the node with that id activates as
// coordinator without running an election").
func (e *Election) BecomeCoordinatorAtBoot() {
	if e.CoordinatorID() == e.selfID {
		e.becomeCoordinator()
	}
}

// StartElection runs the Bully algorithm to completion (§4.6, steps 1-4).
func (e *Election) StartElection() {
	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return
	}
	e.inProgress = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	for {
		higher := e.higherPeers()
		if len(higher) == 0 {
			e.becomeCoordinator()
			return
		}

		// snapshot before polling so any announcement that happens to arrive
		// during pollHigherPeers still counts as "received" below.
		startSeq := e.currentAnnounceSeq()

		responsive := e.pollHigherPeers(higher)
		if len(responsive) == 0 {
			e.becomeCoordinator()
			return
		}

		if e.waitForAnnouncement(startSeq) {
			return
		}
		// no announcement arrived in time: restart from step 1.
	}
}

func (e *Election) higherPeers() []int {
	var higher []int
	for _, id := range e.peers.ToSlice() {
		if id > e.selfID {
			higher = append(higher, id)
		}
	}
	sort.Ints(higher)
	return higher
}

// pollHigherPeers sends Election to each higher peer concurrently and
// collects the set that answered Election_OK within response_timeout.
func (e *Election) pollHigherPeers(higher []int) []int {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var responsive []int
	for _, id := range higher {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.transport.SendElection(id, e.responseTimeout) {
				mu.Lock()
				responsive = append(responsive, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return responsive
}

func (e *Election) currentAnnounceSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.announceSeq
}

// waitForAnnouncement blocks up to election_timeout for a fresh coordinator
// announcement to arrive via HandleCoordinatorAnnouncement. It tracks receipt
// through announceSeq rather than comparing coordinatorID against self,
// since coordinatorID can already hold a stale non-self value (e.g. the
// boot-time max-id adoption) before any real announcement for this round has
// arrived.
func (e *Election) waitForAnnouncement(startSeq uint64) bool {
	deadline := time.Now().Add(e.announceTimeout)
	for time.Now().Before(deadline) {
		if e.currentAnnounceSeq() != startSeq {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func (e *Election) becomeCoordinator() {
	e.setCoordinator(e.selfID)
	e.transport.AnnounceCoordinator(e.selfID)
}

// HandleElection unconditionally replies Election_OK (the caller's RPC layer
// does that); it also starts a fresh election asynchronously if none is
// already running (§4.6).
func (e *Election) HandleElection(from int) {
	e.mu.Lock()
	running := e.inProgress
	e.mu.Unlock()
	if !running {
		go e.StartElection()
	}
}

// HandleCoordinatorAnnouncement adopts from as coordinator, invoking the
// role-change callback if it actually changed (§4.6), and marks a fresh
// announcement as received for any in-progress waitForAnnouncement.
func (e *Election) HandleCoordinatorAnnouncement(from int) {
	e.mu.Lock()
	changed := e.coordinatorID != from
	e.coordinatorID = from
	e.announceSeq++
	e.mu.Unlock()

	if changed && e.onRoleChange != nil {
		e.onRoleChange(from, from == e.selfID)
	}
}

func (e *Election) setCoordinator(id int) {
	e.mu.Lock()
	changed := e.coordinatorID != id
	e.coordinatorID = id
	e.mu.Unlock()

	if changed && e.onRoleChange != nil {
		e.onRoleChange(id, id == e.selfID)
	}
}

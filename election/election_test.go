package election

import (
	"sync"
	"time"

	"testing"

	"github.com/magiconair/properties/assert"
)

type fakeTransport struct {
	mu         sync.Mutex
	okFrom     map[int]bool
	announced  []int
	onAnnounce func(from int)
	sendCalls  int
}

func (f *fakeTransport) SendElection(nodeID int, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	return f.okFrom[nodeID]
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

func (f *fakeTransport) AnnounceCoordinator(selfID int) {
	f.mu.Lock()
	f.announced = append(f.announced, selfID)
	f.mu.Unlock()
	if f.onAnnounce != nil {
		f.onAnnounce(selfID)
	}
}

func TestBootAdoptsMaxIDAsCoordinator(t *testing.T) {
	e := New(1, []int{1, 2, 3}, &fakeTransport{})
	assert.Equal(t, e.CoordinatorID(), 3)
	assert.Equal(t, e.IsCoordinator(), false)
}

func TestBootHighestIDBecomesCoordinatorWithoutElection(t *testing.T) {
	ft := &fakeTransport{}
	e := New(3, []int{1, 2, 3}, ft)
	e.BecomeCoordinatorAtBoot()
	assert.Equal(t, e.IsCoordinator(), true)
	assert.Equal(t, len(ft.announced), 1)
}

func TestStartElectionWithNoHigherPeersBecomesCoordinator(t *testing.T) {
	ft := &fakeTransport{okFrom: map[int]bool{}}
	e := New(5, []int{1, 2, 5}, ft)
	e.StartElection()
	assert.Equal(t, e.IsCoordinator(), true)
	assert.Equal(t, len(ft.announced), 1)
}

func TestStartElectionNoResponsiveHigherPeerBecomesCoordinator(t *testing.T) {
	ft := &fakeTransport{okFrom: map[int]bool{3: false}}
	e := New(2, []int{1, 2, 3}, ft)
	e.StartElection()
	assert.Equal(t, e.IsCoordinator(), true)
}

func TestStartElectionWaitsForAnnouncementFromResponsivePeer(t *testing.T) {
	ft := &fakeTransport{okFrom: map[int]bool{3: true}}
	e := New(2, []int{1, 2, 3}, ft)
	e.announceTimeout = 100 * time.Millisecond

	go func() {
		time.Sleep(10 * time.Millisecond)
		e.HandleCoordinatorAnnouncement(3)
	}()

	e.StartElection()
	assert.Equal(t, e.CoordinatorID(), 3)
	assert.Equal(t, e.IsCoordinator(), false)
}

// a responsive higher peer that never actually announces must send the
// election back through step 1 repeatedly (§4.6 step 3), not resolve on the
// first loop just because coordinatorID already holds a stale non-self value
// from boot.
func TestStartElectionRetriesUntilAnnouncementArrivesThenAdoptsAnnouncer(t *testing.T) {
	ft := &fakeTransport{okFrom: map[int]bool{3: true}}
	e := New(2, []int{1, 2, 3}, ft)
	e.announceTimeout = 20 * time.Millisecond
	e.responseTimeout = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		e.StartElection()
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("election finished without any announcement ever arriving")
	default:
	}
	assert.Equal(t, ft.callCount() > 1, true)

	e.HandleCoordinatorAnnouncement(3)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("election never completed after announcement arrived")
	}
	assert.Equal(t, e.CoordinatorID(), 3)
}

func TestHandleCoordinatorAnnouncementInvokesRoleChangeCallback(t *testing.T) {
	e := New(1, []int{1, 2}, &fakeTransport{})
	var gotID int
	var gotIsCoord bool
	done := make(chan struct{})
	e.OnRoleChange(func(coordinatorID int, isCoordinator bool) {
		gotID = coordinatorID
		gotIsCoord = isCoordinator
		close(done)
	})

	e.HandleCoordinatorAnnouncement(2)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("role-change callback never fired")
	}
	assert.Equal(t, gotID, 2)
	assert.Equal(t, gotIsCoord, false)
}

func TestHandleElectionStartsElectionIfNoneInProgress(t *testing.T) {
	ft := &fakeTransport{okFrom: map[int]bool{}}
	e := New(5, []int{1, 5}, ft)

	e.HandleElection(1)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, e.IsCoordinator(), true)
}

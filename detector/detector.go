// Package detector implements the heartbeat-based failure detector (§4.5):
// a sender loop that heartbeats peers currently believed alive, and a
// checker loop that sweeps the liveness map for timed-out peers. Grounded on
// the teacher's detector/manager.go mutex-guarded-map-plus-periodic-loop
// idiom, generalized from its RL-tuned crash/network-failure level state
// machine down to a plain boolean liveness map.
package detector

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"dqlcluster/configs"
)

// Transport is the subset of wire/transport used to send heartbeats; kept
// as an interface so the detector can be unit-tested without real sockets.
type Transport interface {
	SendHeartbeat(nodeID int) error
}

// Detector tracks peer liveness for one node and drives the sender/checker
// tasks of §4.5.
type Detector struct {
	mu       sync.Mutex
	alive    map[int]bool
	lastSeen map[int]time.Time

	selfID    int
	peers     map[int]string // nodeID -> address, excludes self
	transport Transport

	interval time.Duration
	timeout  time.Duration

	onFailure  func(nodeID int)
	onRecovery func(nodeID int)

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Detector for selfID with the given peer address table. interval
// and timeout must satisfy timeout >= 3*interval (§4.5); configs.HeartbeatInterval
// and configs.HeartbeatTimeout already do.
func New(selfID int, peers map[int]string, transport Transport, interval, timeout time.Duration) *Detector {
	d := &Detector{
		alive:     make(map[int]bool, len(peers)),
		lastSeen:  make(map[int]time.Time, len(peers)),
		selfID:    selfID,
		peers:     peers,
		transport: transport,
		interval:  interval,
		timeout:   timeout,
		stop:      make(chan struct{}),
	}
	for id := range peers {
		d.alive[id] = true
		d.lastSeen[id] = time.Now()
	}
	return d
}

// OnFailure registers the callback invoked when a peer is newly marked dead.
func (d *Detector) OnFailure(f func(nodeID int)) { d.onFailure = f }

// OnRecovery registers the callback invoked when a peer is newly marked alive
// again after being dead.
func (d *Detector) OnRecovery(f func(nodeID int)) { d.onRecovery = f }

// Start launches the sender and checker goroutines.
func (d *Detector) Start() {
	d.wg.Add(2)
	go d.senderLoop()
	go d.checkerLoop()
}

// Stop halts both loops and waits for them to exit.
func (d *Detector) Stop() {
	close(d.stop)
	d.wg.Wait()
}

// senderLoop transmits a heartbeat to every peer currently believed alive,
// every interval. No response is expected or read (§4.5).
func (d *Detector) senderLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		for _, id := range d.aliveSet().ToSlice() {
			if err := d.transport.SendHeartbeat(id); err != nil {
				configs.DPrintf("heartbeat send to node %d failed: %v", id, err)
			}
		}
		time.Sleep(d.interval)
	}
}

// checkerLoop sweeps the liveness map every second looking for peers that
// have exceeded timeout since their last heartbeat (§4.5).
func (d *Detector) checkerLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		d.sweep()
		time.Sleep(configs.FailureCheckInterval)
	}
}

func (d *Detector) sweep() {
	now := time.Now()
	var failed []int
	d.mu.Lock()
	for id, alive := range d.alive {
		if alive && now.Sub(d.lastSeen[id]) > d.timeout {
			d.alive[id] = false
			failed = append(failed, id)
		}
	}
	d.mu.Unlock()

	for _, id := range failed {
		configs.Warn(false, "node marked dead on heartbeat timeout")
		if d.onFailure != nil {
			d.onFailure(id)
		}
	}
}

// RecordHeartbeat updates last_heartbeat for nodeID and marks it alive,
// logging recovery if it was previously believed dead (§4.5).
func (d *Detector) RecordHeartbeat(nodeID int) {
	d.mu.Lock()
	wasDead := !d.alive[nodeID]
	d.alive[nodeID] = true
	d.lastSeen[nodeID] = time.Now()
	d.mu.Unlock()

	if wasDead {
		configs.DPrintf("node %d recovered", nodeID)
		if d.onRecovery != nil {
			d.onRecovery(nodeID)
		}
	}
}

// IsAlive reports the current liveness belief for nodeID.
func (d *Detector) IsAlive(nodeID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive[nodeID]
}

// aliveSet returns the set of peer ids currently believed alive.
func (d *Detector) aliveSet() mapset.Set[int] {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := mapset.NewThreadUnsafeSet[int]()
	for id, alive := range d.alive {
		if alive {
			s.Add(id)
		}
	}
	return s
}

// AliveSet returns a snapshot of the node ids currently believed alive,
// consumed by the node's read load balancing and 2PC participant selection
// (§4.7, §4.9).
func (d *Detector) AliveSet() mapset.Set[int] {
	return d.aliveSet()
}

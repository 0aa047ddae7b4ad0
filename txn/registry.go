// Package txn implements the per-node transaction registry (§4.4): a state
// machine per transaction id, with lock ownership released atomically on
// every terminal transition. Grounded on the teacher's txnHandler
// state-machine idiom (network/coordinator/txn_handler.go): a guarded
// transit that panics on illegal transitions and a lifecycle keyed by id.
package txn

import (
	"fmt"
	"sync"

	"dqlcluster/locks"
)

// State is one point in the transaction lifecycle, §3.
type State int

const (
	Active State = iota
	Preparing
	Prepared
	Committing
	Committed
	Aborting
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Preparing:
		return "Preparing"
	case Prepared:
		return "Prepared"
	case Committing:
		return "Committing"
	case Committed:
		return "Committed"
	case Aborting:
		return "Aborting"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

func terminal(s State) bool {
	return s == Committed || s == Aborted
}

// Txn is one registry record.
type Txn struct {
	ID    string
	State State
}

// Registry owns the lifecycle of every transaction a node currently knows
// about. It is not persistent: a crash loses every in-flight record (§4.4,
// §9).
type Registry struct {
	mu    sync.Mutex
	txns  map[string]*Txn
	locks *locks.Manager
}

// New returns an empty registry backed by lm for lock release on terminal
// transitions.
func New(lm *locks.Manager) *Registry {
	return &Registry{
		txns:  make(map[string]*Txn),
		locks: lm,
	}
}

// Begin creates an Active record for id; a duplicate Begin is a no-op
// (§4.4: "duplicate IDs are idempotent").
func (r *Registry) Begin(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[id]; !ok {
		r.txns[id] = &Txn{ID: id, State: Active}
	}
	return id
}

// Get returns the current record for id, if any.
func (r *Registry) Get(id string) (Txn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok {
		return Txn{}, false
	}
	return *t, true
}

// Prepare transitions Active -> Preparing -> Prepared when success is true,
// or reverts Preparing -> Active and returns false otherwise (§4.4). The
// caller is expected to have already invoked QueryExecutor.Prepare and to
// pass its result as success.
func (r *Registry) Prepare(id string, success bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.State != Active {
		return false
	}
	t.State = Preparing
	if !success {
		t.State = Active
		return false
	}
	t.State = Prepared
	return true
}

// Commit transitions Prepared|Active -> Committing -> Committed, releases
// every lock owned by id, and removes the record (§4.4).
func (r *Registry) Commit(id string) bool {
	r.mu.Lock()
	t, ok := r.txns[id]
	if !ok || (t.State != Prepared && t.State != Active) {
		r.mu.Unlock()
		return false
	}
	t.State = Committing
	t.State = Committed
	delete(r.txns, id)
	r.mu.Unlock()
	r.locks.ReleaseAll(id)
	return true
}

// Abort transitions any non-terminal state -> Aborting -> Aborted, releases
// every lock owned by id, and removes the record. A call on an unknown or
// already-terminal id is a no-op and returns false (§4.4, §8).
func (r *Registry) Abort(id string) bool {
	r.mu.Lock()
	t, ok := r.txns[id]
	if !ok || terminal(t.State) {
		r.mu.Unlock()
		return false
	}
	t.State = Aborting
	t.State = Aborted
	delete(r.txns, id)
	r.mu.Unlock()
	r.locks.ReleaseAll(id)
	return true
}

// MustTransition is a defensive check mirroring the teacher's transit panic
// for states that should be structurally unreachable; it is not used on the
// request-handling hot path (§7 forbids panics crossing a worker boundary),
// only in tests and invariant assertions.
func MustTransition(from, to State) {
	if from == to {
		return
	}
	panic(fmt.Sprintf("illegal transaction state transition %s -> %s", from, to))
}

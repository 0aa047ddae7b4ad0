// Package locks implements the table-level Shared/Exclusive lock manager
// (§4.3): a single manager-wide mutex guards a resource -> active-locks
// table plus a txn -> owned-resources secondary index, with a polling
// Acquire that breaks deadlocks purely by timeout.
package locks

import (
	"time"

	"dqlcluster/configs"

	lock "github.com/viney-shih/go-lock"
)

// Mode is a lock's access mode, §3.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

type entry struct {
	holder     string
	mode       Mode
	acquiredAt time.Time
}

// Manager owns the cluster's table-level locks for one node. Grounded on the
// teacher's locks/rw_lock.go polling idiom, generalized from a single
// boolean rw-lock into a resource-keyed table.
type Manager struct {
	mu    lock.Mutex
	table map[string][]*entry
	byTxn map[string]map[string]bool
}

// New returns an empty lock manager.
func New() *Manager {
	return &Manager{
		mu:    lock.NewCASMutex(),
		table: make(map[string][]*entry),
		byTxn: make(map[string]map[string]bool),
	}
}

// Acquire polls (§4.3: "Polls with a small delay... under a single
// manager-wide mutex until grantable or deadline expires") until the lock
// is grantable or timeout elapses, then returns whether it was granted.
// timeout == 0 on a contended resource returns false immediately (§8).
func (m *Manager) Acquire(resource, txn string, mode Mode, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.tryGrant(resource, txn, mode) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(configs.LockAcquirePollDelay)
	}
}

func (m *Manager) tryGrant(resource, txn string, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	locks := m.table[resource]
	if !grantable(locks, txn, mode) {
		return false
	}
	m.table[resource] = append(locks, &entry{holder: txn, mode: mode, acquiredAt: time.Now()})
	if m.byTxn[txn] == nil {
		m.byTxn[txn] = make(map[string]bool)
	}
	m.byTxn[txn][resource] = true
	return true
}

// grantable implements the predicate from §4.3.
func grantable(locks []*entry, txn string, mode Mode) bool {
	switch mode {
	case Shared:
		// grantable iff no Exclusive held by another holder, or txn
		// already holds the resource.
		for _, l := range locks {
			if l.holder != txn && l.mode == Exclusive {
				return false
			}
		}
		return true
	case Exclusive:
		// grantable iff no other holder holds any lock on resource.
		for _, l := range locks {
			if l.holder != txn {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Release removes every lock on resource owned by txn.
func (m *Manager) Release(resource, txn string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(resource, txn)
}

func (m *Manager) releaseLocked(resource, txn string) {
	kept := m.table[resource][:0]
	for _, l := range m.table[resource] {
		if l.holder != txn {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(m.table, resource)
	} else {
		m.table[resource] = kept
	}
	if resources, ok := m.byTxn[txn]; ok {
		delete(resources, resource)
		if len(resources) == 0 {
			delete(m.byTxn, txn)
		}
	}
}

// ReleaseAll releases every lock held by txn, §4.4 (terminal-transition
// cleanup).
func (m *Manager) ReleaseAll(txn string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resources := make([]string, 0, len(m.byTxn[txn]))
	for r := range m.byTxn[txn] {
		resources = append(resources, r)
	}
	for _, r := range resources {
		m.releaseLocked(r, txn)
	}
}

// Held reports whether txn currently holds any lock on resource, used by
// tests and diagnostics.
func (m *Manager) Held(resource, txn string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.table[resource] {
		if l.holder == txn {
			return true
		}
	}
	return false
}

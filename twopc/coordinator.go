// Package twopc implements the two-phase commit coordinator and participant
// sides (§4.8). Grounded on network/coordinator/2pc.go's Prepare/Decide phase
// split and network/participant/branch.go's vote/commit/abort handling
// against a storage handle; the teacher's multi-protocol (2PC/3PC/FC/G-PAC)
// branching is collapsed down to the single 2PC path the spec names.
package twopc

import (
	"errors"
	"sync"

	"dqlcluster/executor"
	"dqlcluster/txn"
)

// ErrCommitWithoutPrepare is returned by HandleCommit when a participant
// receives Transaction_Commit for a txn with no prior Transaction_Prepare
// (§4.8 ordering invariant).
var ErrCommitWithoutPrepare = errors.New("transaction commit received without a prior matching prepare")

// Transport is the subset of wire/transport twopc needs for the coordinator
// role; kept as an interface so twopc can be unit-tested without sockets.
type Transport interface {
	// BroadcastPrepare sends Transaction_Prepare{txn, query} to every id in
	// participants and returns which ones voted yes (§4.8 phase 1).
	BroadcastPrepare(txnID, query string, participants []int) map[int]bool
	// BroadcastCommit sends Transaction_Commit{txn} to every id in
	// participants and returns which ones acked (§4.8 phase 2).
	BroadcastCommit(txnID string, participants []int) map[int]bool
	// BroadcastAbort fire-and-forgets Transaction_Abort{txn} to participants.
	BroadcastAbort(txnID string, participants []int)
}

// DecisionLog records one line per completed round, §4.12 (EXPANSION); the
// coordinator works fine with a nil log (Execute2PC degrades to pure
// in-memory behavior).
type DecisionLog interface {
	Record(txnID, decision string, participants []int)
}

// ExecResult is Execute2PC's return shape, §4.8 step 3.
type ExecResult struct {
	Success               bool
	PhaseReached          string // "prepare" | "commit" | "abort"
	ParticipantsCommitted []int
	Error                 string
}

// Coordinator drives Execute2PC for one node acting as 2PC coordinator.
type Coordinator struct {
	selfID    int
	transport Transport
	log       DecisionLog
}

// NewCoordinator builds a Coordinator for selfID. log may be nil.
func NewCoordinator(selfID int, transport Transport, log DecisionLog) *Coordinator {
	return &Coordinator{selfID: selfID, transport: transport, log: log}
}

// Execute2PC runs the full two-phase commit round for txnID across
// participants (§4.8). self is implicitly a yes vote and is not sent a wire
// message.
func (c *Coordinator) Execute2PC(txnID, query string, participants []int) ExecResult {
	others := without(participants, c.selfID)

	votes := c.transport.BroadcastPrepare(txnID, query, others)
	allYes := true
	for _, id := range others {
		if !votes[id] {
			allYes = false
			break
		}
	}

	if !allYes {
		c.transport.BroadcastAbort(txnID, others)
		c.record(txnID, "ABORT", participants)
		return ExecResult{Success: false, PhaseReached: "abort"}
	}

	acks := c.transport.BroadcastCommit(txnID, others)
	committed := []int{c.selfID}
	for _, id := range others {
		if acks[id] {
			committed = append(committed, id)
		}
	}
	// regardless of ack failures at this stage the global decision is
	// Commit (§4.8 phase 2).
	c.record(txnID, "COMMIT", participants)
	return ExecResult{Success: true, PhaseReached: "commit", ParticipantsCommitted: committed}
}

func (c *Coordinator) record(txnID, decision string, participants []int) {
	if c.log != nil {
		c.log.Record(txnID, decision, participants)
	}
}

func without(ids []int, self int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

// Participant drives HandlePrepare/HandleCommit/HandleAbort for one node
// acting as a 2PC participant (§4.8).
type Participant struct {
	registry *txn.Registry
	exec     executor.QueryExecutor

	mu       sync.Mutex
	prepared map[string]string // txnID -> query
}

// NewParticipant builds a Participant backed by reg for transaction
// lifecycle and exec for statement execution.
func NewParticipant(reg *txn.Registry, exec executor.QueryExecutor) *Participant {
	return &Participant{registry: reg, exec: exec, prepared: make(map[string]string)}
}

// HandlePrepare begins txnID in the registry, asks exec to prepare query,
// and returns the vote (§4.8).
func (p *Participant) HandlePrepare(txnID, query string) bool {
	p.registry.Begin(txnID)

	ok, err := p.exec.Prepare(query, txnID)
	if err != nil || !ok {
		p.registry.Abort(txnID)
		return false
	}

	p.mu.Lock()
	p.prepared[txnID] = query
	p.mu.Unlock()

	p.registry.Prepare(txnID, true)
	return true
}

// HandleCommit requires txnID to be in the prepared map; otherwise it
// returns ErrCommitWithoutPrepare (§4.8 ordering invariant).
func (p *Participant) HandleCommit(txnID string) error {
	p.mu.Lock()
	query, ok := p.prepared[txnID]
	if ok {
		delete(p.prepared, txnID)
	}
	p.mu.Unlock()

	if !ok {
		return ErrCommitWithoutPrepare
	}

	if _, err := p.exec.CommitPrepared(query, txnID); err != nil {
		return err
	}
	p.registry.Commit(txnID)
	return nil
}

// HandleAbort tells exec to abort a prepared statement if one is pending,
// then aborts the registry entry. It has no reply (§4.8).
func (p *Participant) HandleAbort(txnID string) {
	p.mu.Lock()
	query, ok := p.prepared[txnID]
	if ok {
		delete(p.prepared, txnID)
	}
	p.mu.Unlock()

	if ok {
		if err := p.exec.AbortPrepared(query, txnID); err != nil {
			_ = err // best-effort: abort never blocks on executor failure
		}
	}
	p.registry.Abort(txnID)
}

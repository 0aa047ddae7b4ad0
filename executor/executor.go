// Package executor gives the out-of-scope QueryExecutor collaborator (§6) a
// concrete shape: the interface every core component depends on, plus an
// in-memory fake and two real pluggable backends (postgres.go, mongo.go).
// None of these adapters do SQL planning or parsing;
// they execute a pre-classified statement string and append to a
// transactions log with the status vocabulary from §6.
package executor

import (
	"sync"
	"time"

	"dqlcluster/configs"
)

// Status is one transactions_log entry's outcome, §6.
type Status string

const (
	StatusCommitted     Status = "COMMITTED"
	StatusFailed        Status = "FAILED"
	StatusPrepared      Status = "PREPARED"
	StatusPrepareFailed Status = "PREPARE_FAILED"
	StatusAborted       Status = "ABORTED"
)

// Result is the shape Execute/CommitPrepared return, §6.
type Result struct {
	Success       bool        `json:"success"`
	Data          interface{} `json:"data,omitempty"`
	AffectedRows  int         `json:"affected_rows,omitempty"`
	Error         string      `json:"error,omitempty"`
	NodeID        int         `json:"node_id"`
	Timestamp     time.Time   `json:"timestamp"`
	TransactionID string      `json:"transaction_id"`
	QueryType     string      `json:"query_type"`
}

// LogEntry is one transactions_log row, §6.
type LogEntry struct {
	TransactionID string
	Query         string
	Status        Status
	At            time.Time
}

// QueryExecutor is the collaborator every node delegates actual statement
// execution to (§1 Non-goals, §6). The SQL engine and connection pool behind
// it are explicitly out of scope; implementations only need to honor this
// contract.
type QueryExecutor interface {
	Execute(sql, txn string) (*Result, error)
	Prepare(sql, txn string) (bool, error)
	CommitPrepared(sql, txn string) (*Result, error)
	AbortPrepared(sql, txn string) error
}

// Fake is an in-memory QueryExecutor for tests: it never errors unless
// explicitly instructed to via FailNext, and mirrors the real contract
// exactly including transaction log appends.
type Fake struct {
	NodeID int

	mu       sync.Mutex
	log      []LogEntry
	data     map[string]string
	failNext bool
}

// NewFake returns a ready-to-use Fake executor for nodeID.
func NewFake(nodeID int) *Fake {
	return &Fake{
		NodeID: nodeID,
		data:   make(map[string]string),
	}
}

// FailNext causes the next Execute/Prepare call to fail, for testing the
// abort/vote-no paths.
func (f *Fake) FailNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = true
}

func (f *Fake) takeFailure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	fail := f.failNext
	f.failNext = false
	return fail
}

func (f *Fake) appendLog(txn, query string, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, LogEntry{TransactionID: txn, Query: query, Status: status, At: time.Now()})
}

// Log returns a snapshot of the transactions log, for test assertions.
func (f *Fake) Log() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LogEntry(nil), f.log...)
}

func (f *Fake) Execute(sql, txn string) (*Result, error) {
	if f.takeFailure() {
		f.appendLog(txn, sql, StatusFailed)
		return &Result{Success: false, Error: "fake executor instructed to fail", NodeID: f.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}
	configs.DPrintf("fake executor running %q for %s", sql, txn)
	f.appendLog(txn, sql, StatusCommitted)
	return &Result{Success: true, NodeID: f.NodeID, Timestamp: time.Now(), TransactionID: txn, QueryType: "write"}, nil
}

func (f *Fake) Prepare(sql, txn string) (bool, error) {
	if f.takeFailure() {
		f.appendLog(txn, sql, StatusPrepareFailed)
		return false, nil
	}
	f.appendLog(txn, sql, StatusPrepared)
	return true, nil
}

// CommitPrepared returns a successful Execute-shaped result without calling
// Execute, so no second transactions_log row is appended: Prepare already
// logged PREPARED for this txn (§9).
func (f *Fake) CommitPrepared(sql, txn string) (*Result, error) {
	configs.DPrintf("fake executor committing prepared statement for %s", txn)
	return &Result{Success: true, NodeID: f.NodeID, Timestamp: time.Now(), TransactionID: txn, QueryType: "write"}, nil
}

func (f *Fake) AbortPrepared(sql, txn string) error {
	f.appendLog(txn, sql, StatusAborted)
	return nil
}

package executor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dqlcluster/configs"
)

// Mongo is a toy QueryExecutor backed by a single MongoDB collection. It
// accepts only a tuple-style "table:key:value" statement string (§1
// Non-goals: no SQL planning/parsing lives here) and upserts it with
// ReplaceOne; any other shape, including SQL text, fails with "unsupported
// statement shape".
type Mongo struct {
	NodeID int
	coll   *mongo.Collection

	mu  sync.Mutex
	log []LogEntry
}

// NewMongo wraps an already-connected collection handle.
func NewMongo(nodeID int, coll *mongo.Collection) *Mongo {
	return &Mongo{NodeID: nodeID, coll: coll}
}

func (m *Mongo) appendLog(txn, sql string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, LogEntry{TransactionID: txn, Query: sql, Status: status, At: time.Now()})
}

// Log returns a snapshot of the transactions log.
func (m *Mongo) Log() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry(nil), m.log...)
}

// parseTuple splits the "table:key:value" shape this adapter understands.
func parseTuple(sql string) (key, value string, ok bool) {
	parts := strings.SplitN(sql, ":", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func (m *Mongo) Execute(sql, txn string) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), configs.TransportTimeout)
	defer cancel()

	key, value, ok := parseTuple(sql)
	if !ok {
		m.appendLog(txn, sql, StatusFailed)
		return &Result{Success: false, Error: "unsupported statement shape", NodeID: m.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}

	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		bson.M{"_id": key, "value": value},
		options.Replace().SetUpsert(true))
	if err != nil {
		m.appendLog(txn, sql, StatusFailed)
		return &Result{Success: false, Error: err.Error(), NodeID: m.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}

	m.appendLog(txn, sql, StatusCommitted)
	return &Result{Success: true, AffectedRows: 1, NodeID: m.NodeID, Timestamp: time.Now(), TransactionID: txn, QueryType: "write"}, nil
}

func (m *Mongo) Prepare(sql, txn string) (bool, error) {
	if _, _, ok := parseTuple(sql); !ok {
		m.appendLog(txn, sql, StatusPrepareFailed)
		return false, nil
	}
	m.appendLog(txn, sql, StatusPrepared)
	return true, nil
}

// CommitPrepared does not append a second transactions_log row: Prepare
// already logged PREPARED for this txn (§9).
func (m *Mongo) CommitPrepared(sql, txn string) (*Result, error) {
	configs.DPrintf("mongo executor committing prepared statement for %s", txn)
	ctx, cancel := context.WithTimeout(context.Background(), configs.TransportTimeout)
	defer cancel()

	key, value, ok := parseTuple(sql)
	if !ok {
		return &Result{Success: false, Error: "unsupported statement shape", NodeID: m.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}
	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		bson.M{"_id": key, "value": value},
		options.Replace().SetUpsert(true))
	if err != nil {
		return &Result{Success: false, Error: err.Error(), NodeID: m.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}
	return &Result{Success: true, AffectedRows: 1, NodeID: m.NodeID, Timestamp: time.Now(), TransactionID: txn, QueryType: "write"}, nil
}

func (m *Mongo) AbortPrepared(sql, txn string) error {
	m.appendLog(txn, sql, StatusAborted)
	return nil
}

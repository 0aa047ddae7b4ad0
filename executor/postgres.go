package executor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"dqlcluster/configs"
)

// Postgres is a QueryExecutor backed by a single pgx connection. It issues
// the literal statement string directly: no pooling, no SQL rewriting, no
// planning. The core has already classified read vs. write before handing it
// a statement (§4.9's ExecuteQuery); this adapter just runs it.
type Postgres struct {
	NodeID int
	conn   *pgx.Conn

	mu  sync.Mutex
	log []LogEntry
}

// NewPostgres wraps an already-connected pgx.Conn.
func NewPostgres(nodeID int, conn *pgx.Conn) *Postgres {
	return &Postgres{NodeID: nodeID, conn: conn}
}

func (p *Postgres) appendLog(txn, sql string, status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, LogEntry{TransactionID: txn, Query: sql, Status: status, At: time.Now()})
}

// Log returns a snapshot of the transactions log.
func (p *Postgres) Log() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogEntry(nil), p.log...)
}

func (p *Postgres) Execute(sql, txn string) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), configs.TransportTimeout)
	defer cancel()

	tag, err := p.conn.Exec(ctx, sql)
	if err != nil {
		p.appendLog(txn, sql, StatusFailed)
		return &Result{Success: false, Error: err.Error(), NodeID: p.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}
	p.appendLog(txn, sql, StatusCommitted)
	return &Result{
		Success:       true,
		AffectedRows:  int(tag.RowsAffected()),
		NodeID:        p.NodeID,
		Timestamp:     time.Now(),
		TransactionID: txn,
		QueryType:     "write",
	}, nil
}

// Prepare runs sql inside a transaction purely to validate it applies
// cleanly, then always rolls back: a single pgx.Conn holds at most one open
// transaction at a time, and this adapter has no real two-phase-commit
// handle to keep that transaction open across the round trip back to the
// participant. The actual write happens later, in CommitPrepared, against
// prepared state tracked at the participant layer (§4.8).
func (p *Postgres) Prepare(sql, txn string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), configs.TransportTimeout)
	defer cancel()

	tx, err := p.conn.Begin(ctx)
	if err != nil {
		p.appendLog(txn, sql, StatusPrepareFailed)
		return false, err
	}
	_, execErr := tx.Exec(ctx, sql)
	_ = tx.Rollback(ctx)
	if execErr != nil {
		p.appendLog(txn, sql, StatusPrepareFailed)
		return false, nil
	}
	p.appendLog(txn, sql, StatusPrepared)
	return true, nil
}

// CommitPrepared re-runs the statement against the live connection; pgx has
// no cross-process prepared-transaction handle here, so the "prepared" state
// is tracked entirely at the participant layer's own prepared map (§4.8).
// It does not append a second transactions_log row: Prepare already logged
// PREPARED for this txn (§9).
func (p *Postgres) CommitPrepared(sql, txn string) (*Result, error) {
	configs.DPrintf("postgres executor committing prepared statement for %s", txn)
	ctx, cancel := context.WithTimeout(context.Background(), configs.TransportTimeout)
	defer cancel()

	tag, err := p.conn.Exec(ctx, sql)
	if err != nil {
		return &Result{Success: false, Error: err.Error(), NodeID: p.NodeID, Timestamp: time.Now(), TransactionID: txn}, nil
	}
	return &Result{
		Success:       true,
		AffectedRows:  int(tag.RowsAffected()),
		NodeID:        p.NodeID,
		Timestamp:     time.Now(),
		TransactionID: txn,
		QueryType:     "write",
	}, nil
}

func (p *Postgres) AbortPrepared(sql, txn string) error {
	p.appendLog(txn, sql, StatusAborted)
	return nil
}

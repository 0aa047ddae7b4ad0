// Package log implements the bounded 2PC decision log (§4.12, EXPANSION): a
// tidwall/wal-backed append-only trail of coordinator decisions, truncated
// to the newest configs.DecisionLogCap entries. It is purely diagnostic —
// never read back to drive protocol behavior (§9's "no persistent 2PC
// recovery log" limitation is unchanged). Grounded on the teacher's
// network/coordinator/log_manager.go LogManager, simplified from its batched
// async-sync-loop design down to a direct per-record write since the decision
// log is low-volume (one record per completed 2PC round, not per operation).
package log

import (
	"fmt"
	"sync"
	"time"

	goccyjson "github.com/goccy/go-json"
	"github.com/tidwall/wal"

	"dqlcluster/configs"
)

// Record is one append-only decision log entry.
type Record struct {
	TxnID        string    `json:"txn_id"`
	Decision     string    `json:"decision"`
	Participants []int     `json:"participants"`
	At           time.Time `json:"at"`
}

// DecisionLog is a bounded, append-only audit trail of 2PC outcomes.
type DecisionLog struct {
	mu  sync.Mutex
	log *wal.Log
	lsn uint64
}

// Open opens (or creates) the decision log directory dir.
func Open(dir string) (*DecisionLog, error) {
	w, err := wal.Open(dir, nil)
	if err != nil {
		return nil, err
	}
	last, err := w.LastIndex()
	if err != nil {
		return nil, err
	}
	return &DecisionLog{log: w, lsn: last}, nil
}

// Record appends one decision for txnID and truncates the log to the newest
// configs.DecisionLogCap entries (§4.12).
func (d *DecisionLog) Record(txnID, decision string, participants []int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := Record{TxnID: txnID, Decision: decision, Participants: participants, At: time.Now()}
	data, err := goccyjson.Marshal(rec)
	if err != nil {
		configs.Warn(false, "decision log marshal failed: "+err.Error())
		return
	}

	d.lsn++
	if err := d.log.Write(d.lsn, data); err != nil {
		configs.Warn(false, "decision log write failed: "+err.Error())
		return
	}

	if d.lsn > uint64(configs.DecisionLogCap) {
		front := d.lsn - uint64(configs.DecisionLogCap)
		if err := d.log.TruncateFront(front + 1); err != nil {
			configs.Warn(false, "decision log truncate failed: "+err.Error())
		}
	}
}

// Tail returns up to the newest n records, oldest first, for diagnostics and
// tests.
func (d *DecisionLog) Tail(n int) ([]Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	first, err := d.log.FirstIndex()
	if err != nil {
		return nil, err
	}
	last, err := d.log.LastIndex()
	if err != nil {
		return nil, err
	}
	if last == 0 {
		return nil, nil
	}
	if n < 0 {
		n = 0
	}
	start := first
	if uint64(n) < last-first+1 {
		start = last - uint64(n) + 1
	}

	var out []Record
	for i := start; i <= last; i++ {
		data, err := d.log.Read(i)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		var rec Record
		if err := goccyjson.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close releases the underlying wal files.
func (d *DecisionLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.log.Close()
}

package configs

import (
	"fmt"
	"sync/atomic"
)

var txnSeq uint64

// NewTxnID returns a process-unique transaction identifier of the shape
// "TXN-<node>-<seq>", matching the "TXN-..." identifiers used in the
// specification's end-to-end scenarios.
func NewTxnID(nodeID int) string {
	seq := atomic.AddUint64(&txnSeq, 1)
	return fmt.Sprintf("TXN-%d-%d", nodeID, seq)
}

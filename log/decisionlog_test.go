package log

import (
	"os"
	"testing"

	"github.com/magiconair/properties/assert"
)

func tempLog(t *testing.T) *DecisionLog {
	dir, err := os.MkdirTemp("", "decisionlog")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAppendsRetrievableEntry(t *testing.T) {
	l := tempLog(t)
	l.Record("t1", "COMMIT", []int{1, 2, 3})

	tail, err := l.Tail(10)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(tail), 1)
	assert.Equal(t, tail[0].TxnID, "t1")
	assert.Equal(t, tail[0].Decision, "COMMIT")
}

func TestTailReturnsNewestEntriesInOrder(t *testing.T) {
	l := tempLog(t)
	l.Record("t1", "COMMIT", []int{1})
	l.Record("t2", "ABORT", []int{1, 2})
	l.Record("t3", "COMMIT", []int{1, 2, 3})

	tail, err := l.Tail(2)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(tail), 2)
	assert.Equal(t, tail[0].TxnID, "t2")
	assert.Equal(t, tail[1].TxnID, "t3")
}

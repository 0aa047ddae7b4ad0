package txn

import (
	"testing"
	"time"

	"github.com/magiconair/properties/assert"

	"dqlcluster/locks"
)

func TestBeginIsIdempotent(t *testing.T) {
	r := New(locks.New())
	r.Begin("t1")
	r.Begin("t1")
	tx, ok := r.Get("t1")
	assert.Equal(t, ok, true)
	assert.Equal(t, tx.State, Active)
}

func TestPrepareSuccessReachesPrepared(t *testing.T) {
	r := New(locks.New())
	r.Begin("t1")
	assert.Equal(t, r.Prepare("t1", true), true)
	tx, _ := r.Get("t1")
	assert.Equal(t, tx.State, Prepared)
}

func TestPrepareFailureRevertsToActive(t *testing.T) {
	r := New(locks.New())
	r.Begin("t1")
	assert.Equal(t, r.Prepare("t1", false), false)
	tx, _ := r.Get("t1")
	assert.Equal(t, tx.State, Active)
}

func TestPrepareOnUnknownTxnFails(t *testing.T) {
	r := New(locks.New())
	assert.Equal(t, r.Prepare("ghost", true), false)
}

func TestCommitReleasesLocksAndRemovesRecord(t *testing.T) {
	lm := locks.New()
	r := New(lm)
	r.Begin("t1")
	assert.Equal(t, lm.Acquire("rows", "t1", locks.Exclusive, time.Second), true)
	assert.Equal(t, r.Prepare("t1", true), true)
	assert.Equal(t, r.Commit("t1"), true)

	_, ok := r.Get("t1")
	assert.Equal(t, ok, false)
	assert.Equal(t, lm.Held("rows", "t1"), false)
	assert.Equal(t, lm.Acquire("rows", "t2", locks.Exclusive, 0), true)
}

func TestCommitFromActiveSucceeds(t *testing.T) {
	r := New(locks.New())
	r.Begin("t1")
	assert.Equal(t, r.Commit("t1"), true)
}

func TestAbortReleasesLocksAndRemovesRecord(t *testing.T) {
	lm := locks.New()
	r := New(lm)
	r.Begin("t1")
	assert.Equal(t, lm.Acquire("rows", "t1", locks.Shared, time.Second), true)
	assert.Equal(t, r.Abort("t1"), true)

	_, ok := r.Get("t1")
	assert.Equal(t, ok, false)
	assert.Equal(t, lm.Held("rows", "t1"), false)
}

func TestAbortOnTerminalTxnIsNoOp(t *testing.T) {
	r := New(locks.New())
	r.Begin("t1")
	assert.Equal(t, r.Commit("t1"), true)
	assert.Equal(t, r.Abort("t1"), false)
}

func TestAbortOnUnknownTxnIsNoOp(t *testing.T) {
	r := New(locks.New())
	assert.Equal(t, r.Abort("ghost"), false)
}

package twopc

import (
	"testing"

	"github.com/magiconair/properties/assert"

	"dqlcluster/executor"
	"dqlcluster/locks"
	"dqlcluster/txn"
)

type fakeTransport struct {
	prepareVotes map[int]bool
	commitAcks   map[int]bool
	aborted      []int
}

func (f *fakeTransport) BroadcastPrepare(txnID, query string, participants []int) map[int]bool {
	return f.prepareVotes
}

func (f *fakeTransport) BroadcastCommit(txnID string, participants []int) map[int]bool {
	return f.commitAcks
}

func (f *fakeTransport) BroadcastAbort(txnID string, participants []int) {
	f.aborted = append(f.aborted, participants...)
}

type fakeLog struct {
	decisions []string
}

func (l *fakeLog) Record(txnID, decision string, participants []int) {
	l.decisions = append(l.decisions, decision)
}

func TestExecute2PCAllYesCommits(t *testing.T) {
	ft := &fakeTransport{prepareVotes: map[int]bool{2: true, 3: true}, commitAcks: map[int]bool{2: true, 3: true}}
	log := &fakeLog{}
	c := NewCoordinator(1, ft, log)

	res := c.Execute2PC("t1", "UPDATE x", []int{1, 2, 3})
	assert.Equal(t, res.Success, true)
	assert.Equal(t, res.PhaseReached, "commit")
	assert.Equal(t, len(res.ParticipantsCommitted), 3)
	assert.Equal(t, log.decisions[0], "COMMIT")
}

func TestExecute2PCAnyNoAborts(t *testing.T) {
	ft := &fakeTransport{prepareVotes: map[int]bool{2: true, 3: false}}
	log := &fakeLog{}
	c := NewCoordinator(1, ft, log)

	res := c.Execute2PC("t1", "UPDATE x", []int{1, 2, 3})
	assert.Equal(t, res.Success, false)
	assert.Equal(t, res.PhaseReached, "abort")
	assert.Equal(t, len(ft.aborted), 2)
	assert.Equal(t, log.decisions[0], "ABORT")
}

func TestExecute2PCCommitSucceedsDespiteMissingAcks(t *testing.T) {
	ft := &fakeTransport{prepareVotes: map[int]bool{2: true}, commitAcks: map[int]bool{}}
	c := NewCoordinator(1, ft, nil)

	res := c.Execute2PC("t1", "UPDATE x", []int{1, 2})
	assert.Equal(t, res.Success, true)
	assert.Equal(t, res.ParticipantsCommitted, []int{1})
}

func TestHandlePrepareSuccessVotesYesAndStoresPrepared(t *testing.T) {
	reg := txn.New(locks.New())
	exec := executor.NewFake(2)
	p := NewParticipant(reg, exec)

	assert.Equal(t, p.HandlePrepare("t1", "UPDATE x"), true)
	tx, ok := reg.Get("t1")
	assert.Equal(t, ok, true)
	assert.Equal(t, tx.State, txn.Prepared)
}

func TestHandlePrepareFailureVotesNoAndAbortsTxn(t *testing.T) {
	reg := txn.New(locks.New())
	exec := executor.NewFake(2)
	exec.FailNext()
	p := NewParticipant(reg, exec)

	assert.Equal(t, p.HandlePrepare("t1", "UPDATE x"), false)
	_, ok := reg.Get("t1")
	assert.Equal(t, ok, false)
}

func TestHandleCommitWithoutPrepareReturnsError(t *testing.T) {
	reg := txn.New(locks.New())
	exec := executor.NewFake(2)
	p := NewParticipant(reg, exec)

	err := p.HandleCommit("ghost")
	assert.Equal(t, err, ErrCommitWithoutPrepare)
}

func TestHandleCommitAfterPrepareCommitsTxn(t *testing.T) {
	reg := txn.New(locks.New())
	exec := executor.NewFake(2)
	p := NewParticipant(reg, exec)

	p.HandlePrepare("t1", "UPDATE x")
	err := p.HandleCommit("t1")
	assert.Equal(t, err, nil)
	_, ok := reg.Get("t1")
	assert.Equal(t, ok, false)
}

func TestHandleAbortAfterPrepareInvokesExecutorAbort(t *testing.T) {
	reg := txn.New(locks.New())
	exec := executor.NewFake(2)
	p := NewParticipant(reg, exec)

	p.HandlePrepare("t1", "UPDATE x")
	p.HandleAbort("t1")

	log := exec.Log()
	assert.Equal(t, log[len(log)-1].Status, executor.StatusAborted)
	_, ok := reg.Get("t1")
	assert.Equal(t, ok, false)
}

func TestHandleAbortOnUnpreparedTxnIsNoOp(t *testing.T) {
	reg := txn.New(locks.New())
	exec := executor.NewFake(2)
	p := NewParticipant(reg, exec)

	p.HandleAbort("ghost")
	assert.Equal(t, len(exec.Log()), 0)
}

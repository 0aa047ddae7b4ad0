package executor

import (
	"testing"

	"github.com/magiconair/properties/assert"
)

func TestFakeExecuteAppendsCommittedLog(t *testing.T) {
	f := NewFake(1)
	res, err := f.Execute("INSERT INTO t VALUES (1)", "t1")
	assert.Equal(t, err, nil)
	assert.Equal(t, res.Success, true)

	log := f.Log()
	assert.Equal(t, len(log), 1)
	assert.Equal(t, log[0].Status, StatusCommitted)
}

func TestFakeExecuteFailureAppendsFailedLog(t *testing.T) {
	f := NewFake(1)
	f.FailNext()
	res, err := f.Execute("INSERT INTO t VALUES (1)", "t1")
	assert.Equal(t, err, nil)
	assert.Equal(t, res.Success, false)

	log := f.Log()
	assert.Equal(t, log[len(log)-1].Status, StatusFailed)
}

func TestFakePrepareSuccessAppendsPreparedLog(t *testing.T) {
	f := NewFake(1)
	ok, err := f.Prepare("UPDATE t SET x=1", "t1")
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)
	assert.Equal(t, f.Log()[0].Status, StatusPrepared)
}

func TestFakePrepareFailureAppendsPrepareFailedLog(t *testing.T) {
	f := NewFake(1)
	f.FailNext()
	ok, _ := f.Prepare("UPDATE t SET x=1", "t1")
	assert.Equal(t, ok, false)
	assert.Equal(t, f.Log()[0].Status, StatusPrepareFailed)
}

func TestFakeCommitPreparedDoesNotDuplicateLogRow(t *testing.T) {
	f := NewFake(1)
	f.Prepare("UPDATE t SET x=1", "t1")
	_, err := f.CommitPrepared("UPDATE t SET x=1", "t1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(f.Log()), 1)
}

func TestFakeAbortPreparedAppendsAbortedLog(t *testing.T) {
	f := NewFake(1)
	f.Prepare("UPDATE t SET x=1", "t1")
	err := f.AbortPrepared("UPDATE t SET x=1", "t1")
	assert.Equal(t, err, nil)
	log := f.Log()
	assert.Equal(t, log[len(log)-1].Status, StatusAborted)
}

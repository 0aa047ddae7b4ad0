// Package configs holds the cluster-wide tunables and the leveled logging
// helpers shared by every core package, mirroring how the teacher project
// keeps its debug toggles and timing constants in one place rather than
// threading them through every constructor.
package configs

import "time"

// Debugging toggles.
var (
	ShowDebugInfo = false
	ShowWarnings  = ShowDebugInfo
	ShowTestInfo  = ShowDebugInfo
	LogToFile     = true
)

// Status marks appended to the executor's transaction log, §6.
const (
	MarkPrepared  = "PREPARED"
	MarkCommitted = "COMMITTED"
	MarkAborted   = "ABORTED"
	MarkFailed    = "FAILED"
	MarkPrepFail  = "PREPARE_FAILED"
)

// Timeouts and intervals, §4/§5.
const (
	TransportTimeout       = 5 * time.Second
	LockAcquirePollDelay   = 100 * time.Millisecond
	LockAcquireTimeout     = 30 * time.Second
	HeartbeatInterval      = 5 * time.Second
	HeartbeatTimeout       = 15 * time.Second
	FailureCheckInterval   = 1 * time.Second
	ElectionResponseWait   = 3 * time.Second
	ElectionAnnounceWait   = 10 * time.Second
	MaxFrameLength         = 10 * 1024 * 1024 // 10 MiB
	LoadBalancerSampleSize = 100
	DecisionLogCap         = 1000
)

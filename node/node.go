// Package node implements the per-process orchestrator (§4.9): the dispatch
// table from wire message type to handler, the coordinator/non-coordinator
// role state machine, and ExecuteQuery's read/write planning. It wires
// together every other package (locks, txn, detector, election,
// loadbalancer, twopc, executor) exactly the way the teacher's fc-server
// binary wires its Manager/Commu/LevelStateManager trio.
package node

import (
	"strings"
	"sync"

	"dqlcluster/config"
	"dqlcluster/configs"
	"dqlcluster/detector"
	"dqlcluster/election"
	"dqlcluster/executor"
	"dqlcluster/loadbalancer"
	"dqlcluster/locks"
	"dqlcluster/twopc"
	"dqlcluster/txn"
)

// DecisionLog is the subset of log.DecisionLog the node needs; an interface
// so a node can run with no decision log at all.
type DecisionLog interface {
	Record(txnID, decision string, participants []int)
}

// Node is one cluster member: the coordination core plus whatever
// QueryExecutor backend it was constructed with.
type Node struct {
	ID    int
	peers map[int]string // peer node id -> dial address, excludes self

	locks        *locks.Manager
	registry     *txn.Registry
	lb           *loadbalancer.LoadBalancer
	readStrategy loadbalancer.Strategy
	exec         executor.QueryExecutor
	participant  *twopc.Participant
	coordinator  *twopc.Coordinator
	decisionLog  DecisionLog

	detector *detector.Detector
	election *election.Election

	mu            sync.RWMutex
	isCoordinator bool
}

// New builds a Node from cfg, wiring every collaborator package together.
// exec is the QueryExecutor backend (executor.Fake/Postgres/Mongo);
// decisionLog may be nil.
func New(cfg config.Config, exec executor.QueryExecutor, decisionLog DecisionLog) *Node {
	n := &Node{
		ID:          cfg.Self.ID,
		peers:       cfg.PeerAddresses(),
		exec:        exec,
		decisionLog: decisionLog,
	}

	n.locks = locks.New()
	n.registry = txn.New(n.locks)
	n.lb = loadbalancer.New()
	n.readStrategy = parseReadStrategy(cfg.ReadStrategy)
	n.participant = twopc.NewParticipant(n.registry, exec)
	n.coordinator = twopc.NewCoordinator(n.ID, n, n.decisionLog)

	n.detector = detector.New(n.ID, n.peers, n, cfg.HeartbeatInterval, cfg.HeartbeatTimeout)

	n.election = election.New(n.ID, cfg.NodeIDs(), n)
	n.election.OnRoleChange(n.handleRoleChange)

	n.detector.OnFailure(func(id int) {
		configs.Warn(false, "peer marked dead by failure detector")
		if id == n.election.CoordinatorID() {
			go n.election.StartElection()
		}
	})

	return n
}

// Start activates the node: adopts the boot-time coordinator per §4.6 and
// launches the failure detector's sender/checker tasks.
func (n *Node) Start() {
	n.election.BecomeCoordinatorAtBoot()
	n.detector.Start()
}

// Stop halts the failure detector.
func (n *Node) Stop() {
	n.detector.Stop()
}

func (n *Node) handleRoleChange(coordinatorID int, isCoordinator bool) {
	n.mu.Lock()
	n.isCoordinator = isCoordinator
	n.mu.Unlock()
	if isCoordinator {
		configs.DPrintf("node %d is now coordinator", n.ID)
	} else {
		configs.DPrintf("node %d now defers to coordinator %d", n.ID, coordinatorID)
	}
}

// IsCoordinator reports whether this node currently believes it is the
// active coordinator.
func (n *Node) IsCoordinator() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isCoordinator
}

// CoordinatorID returns the currently known coordinator's id.
func (n *Node) CoordinatorID() int {
	return n.election.CoordinatorID()
}

// alivePeers returns every peer id currently believed alive (excludes self;
// callers that need self included do so explicitly, §4.9 "alive_peers ∪
// {self}").
func (n *Node) alivePeers() []int {
	return n.detector.AliveSet().ToSlice()
}

// parseReadStrategy maps the config's read_strategy string to a
// loadbalancer.Strategy, defaulting to RoundRobin (§4.7, §8 scenario 1) when
// blank or unrecognized.
func parseReadStrategy(s string) loadbalancer.Strategy {
	switch s {
	case "least_loaded":
		return loadbalancer.LeastLoaded
	default:
		return loadbalancer.RoundRobin
	}
}

// classify returns "read", "write", or "unknown" based on sql's first
// keyword (§4.9 planning).
func classify(sql string) string {
	trimmed := strings.TrimSpace(sql)
	firstWord := trimmed
	if i := strings.IndexAny(trimmed, " \t\n"); i >= 0 {
		firstWord = trimmed[:i]
	}
	switch strings.ToUpper(firstWord) {
	case "SELECT":
		return "read"
	case "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TRUNCATE":
		return "write"
	default:
		return "unknown"
	}
}

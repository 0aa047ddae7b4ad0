package node

import (
	"time"

	"dqlcluster/configs"
)

// ExecuteQuery is the client-facing entry point (§4.9): if this node is
// active coordinator, it plans directly; otherwise it forwards to the
// current coordinator as a Query with from_coordinator=false and returns
// the response unwrapped.
func (n *Node) ExecuteQuery(sql string) queryResponse {
	if n.IsCoordinator() {
		return n.plan(sql)
	}

	coordID := n.CoordinatorID()
	resp, err := n.sendQuery(coordID, sql, false)
	if err != nil {
		return queryResponse{Success: false, NodeID: n.ID, Error: err.Error()}
	}
	return *resp
}

// plan implements the coordinator-only planning table (§4.9).
func (n *Node) plan(sql string) queryResponse {
	switch classify(sql) {
	case "read":
		return n.planRead(sql)
	case "write":
		return n.planWrite(sql)
	default:
		return queryResponse{Success: false, NodeID: n.ID, Error: "Unknown query type"}
	}
}

// planRead picks a node via the load balancer over alive_peers ∪ {self}
// (§4.9).
func (n *Node) planRead(sql string) queryResponse {
	available := append(n.alivePeers(), n.ID)
	target, ok := n.lb.Select(available, n.readStrategy)
	if !ok {
		return queryResponse{Success: false, NodeID: n.ID, Error: "no available node"}
	}

	n.lb.RecordStart(target)
	start := time.Now()
	defer func() { n.lb.RecordEnd(target, time.Since(start)) }()

	if target == n.ID {
		return n.executeLocally(sql)
	}

	resp, err := n.sendQuery(target, sql, true)
	if err != nil {
		return queryResponse{Success: false, NodeID: n.ID, Error: err.Error()}
	}
	resp.ResponseTime = time.Since(start).Seconds()
	return *resp
}

// planWrite runs 2PC over alive_peers ∪ {self}; a successful round also
// executes the write locally, since self's local write is not itself a
// participant reply in this implementation (§4.9).
func (n *Node) planWrite(sql string) queryResponse {
	txnID := configs.NewTxnID(n.ID)
	n.registry.Begin(txnID)

	participants := append(n.alivePeers(), n.ID)
	result := n.coordinator.Execute2PC(txnID, sql, participants)
	if !result.Success {
		n.registry.Abort(txnID)
		return queryResponse{Success: false, TransactionID: txnID, NodeID: n.ID, Error: "transaction aborted"}
	}

	execResult, err := n.exec.Execute(sql, txnID)
	n.registry.Commit(txnID)
	if err != nil {
		return queryResponse{Success: false, TransactionID: txnID, NodeID: n.ID, Error: err.Error()}
	}
	return queryResponse{
		Success:       execResult.Success,
		TransactionID: txnID,
		NodeID:        n.ID,
		AffectedRows:  execResult.AffectedRows,
		Error:         execResult.Error,
	}
}

// executeLocally runs sql directly against this node's QueryExecutor,
// bypassing planning (used both for self-selected reads and messages
// arriving with from_coordinator=true, §4.9).
func (n *Node) executeLocally(sql string) queryResponse {
	txnID := configs.NewTxnID(n.ID)
	res, err := n.exec.Execute(sql, txnID)
	if err != nil {
		return queryResponse{Success: false, TransactionID: txnID, NodeID: n.ID, Error: err.Error()}
	}
	return queryResponse{
		Success:       res.Success,
		TransactionID: txnID,
		NodeID:        n.ID,
		Data:          res.Data,
		AffectedRows:  res.AffectedRows,
		Error:         res.Error,
	}
}

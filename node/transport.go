package node

import (
	"fmt"
	"time"

	"dqlcluster/configs"
	"dqlcluster/wire"
	"dqlcluster/wire/transport"
)

// SendHeartbeat implements detector.Transport: fire-and-forget Heartbeat to
// nodeID, no response expected (§4.5).
func (n *Node) SendHeartbeat(nodeID int) error {
	addr, ok := n.peers[nodeID]
	if !ok {
		return fmt.Errorf("unknown peer %d", nodeID)
	}
	msg, err := wire.New(wire.Heartbeat, n.ID, &nodeID, map[string]interface{}{})
	if err != nil {
		return err
	}
	_, err = transport.Send(addr, msg, false, configs.TransportTimeout)
	return err
}

// SendElection implements election.Transport: send Election to nodeID and
// report whether Election_OK came back within responseTimeout (§4.6).
func (n *Node) SendElection(nodeID int, responseTimeout time.Duration) bool {
	addr, ok := n.peers[nodeID]
	if !ok {
		return false
	}
	msg, err := wire.New(wire.Election, n.ID, &nodeID, map[string]interface{}{})
	if err != nil {
		return false
	}
	resp, err := transport.Send(addr, msg, true, responseTimeout)
	if err != nil || resp == nil {
		return false
	}
	return resp.Type == wire.ElectionOK
}

// AnnounceCoordinator implements election.Transport: fire-and-forget
// Coordinator_Announcement to every peer (§4.6 step 4).
func (n *Node) AnnounceCoordinator(selfID int) {
	transport.Broadcast(n.peers, func(nodeID int) *wire.Message {
		msg, _ := wire.New(wire.CoordinatorAnnouncement, selfID, &nodeID, map[string]interface{}{})
		return msg
	}, false, configs.TransportTimeout)
}

// BroadcastPrepare implements twopc.Transport phase 1: send
// Transaction_Prepare{txn, query} to every participant and report who voted
// yes (§4.8).
func (n *Node) BroadcastPrepare(txnID, query string, participants []int) map[int]bool {
	addrs := n.addressesFor(participants)
	responses := transport.Broadcast(addrs, func(nodeID int) *wire.Message {
		data, _ := wire.EncodeData(prepareData{TxnID: txnID, Query: query})
		msg, _ := wire.New(wire.TransactionPrepare, n.ID, &nodeID, data)
		return msg
	}, true, configs.TransportTimeout)

	votes := make(map[int]bool, len(participants))
	for _, id := range participants {
		resp, ok := responses[id]
		votes[id] = ok && resp != nil && resp.Type == wire.TransactionVoteYes
	}
	return votes
}

// BroadcastCommit implements twopc.Transport phase 2 (commit branch): send
// Transaction_Commit{txn} and report who acked (§4.8).
func (n *Node) BroadcastCommit(txnID string, participants []int) map[int]bool {
	addrs := n.addressesFor(participants)
	responses := transport.Broadcast(addrs, func(nodeID int) *wire.Message {
		data, _ := wire.EncodeData(commitData{TxnID: txnID})
		msg, _ := wire.New(wire.TransactionCommit, n.ID, &nodeID, data)
		return msg
	}, true, configs.TransportTimeout)

	acks := make(map[int]bool, len(participants))
	for _, id := range participants {
		resp, ok := responses[id]
		acks[id] = ok && resp != nil && resp.Type == wire.Ack
	}
	return acks
}

// BroadcastAbort implements twopc.Transport phase 2 (abort branch):
// fire-and-forget Transaction_Abort{txn} (§4.8).
func (n *Node) BroadcastAbort(txnID string, participants []int) {
	addrs := n.addressesFor(participants)
	transport.Broadcast(addrs, func(nodeID int) *wire.Message {
		data, _ := wire.EncodeData(abortData{TxnID: txnID})
		msg, _ := wire.New(wire.TransactionAbort, n.ID, &nodeID, data)
		return msg
	}, false, configs.TransportTimeout)
}

// addressesFor narrows n.peers down to ids, skipping self (self is always
// implicitly included by the caller, never dialed over the wire).
func (n *Node) addressesFor(ids []int) map[int]string {
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if id == n.ID {
			continue
		}
		if addr, ok := n.peers[id]; ok {
			out[id] = addr
		}
	}
	return out
}

// sendQuery forwards sql as a Query message to nodeID with fromCoordinator
// set, and returns the unwrapped response (§4.9).
func (n *Node) sendQuery(nodeID int, sql string, fromCoordinator bool) (*queryResponse, error) {
	addr, ok := n.peers[nodeID]
	if !ok {
		return nil, fmt.Errorf("unknown peer %d", nodeID)
	}
	data, err := wire.EncodeData(queryData{SQL: sql, FromCoordinator: fromCoordinator})
	if err != nil {
		return nil, err
	}
	msg, err := wire.New(wire.Query, n.ID, &nodeID, data)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Send(addr, msg, true, configs.TransportTimeout)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from node %d", nodeID)
	}
	out, err := wire.DecodeData[queryResponse](resp.Data)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

package node

import (
	"dqlcluster/configs"
	"dqlcluster/twopc"
	"dqlcluster/wire"
)

// Handle is the wire/transport.Handler this node registers with its Server:
// the dispatch table from message type to handler (§4.9).
func (n *Node) Handle(msg *wire.Message) *wire.Message {
	if !msg.VerifyChecksum() {
		return n.errorResponse(msg, "checksum mismatch")
	}

	switch msg.Type {
	case wire.Heartbeat:
		n.detector.RecordHeartbeat(msg.SenderID)
		return nil

	case wire.Query:
		return n.handleQuery(msg)

	case wire.Replication:
		return n.handleReplication(msg)

	case wire.Election:
		n.election.HandleElection(msg.SenderID)
		resp, _ := wire.New(wire.ElectionOK, n.ID, &msg.SenderID, map[string]interface{}{})
		return resp

	case wire.CoordinatorAnnouncement:
		n.election.HandleCoordinatorAnnouncement(msg.SenderID)
		return nil

	case wire.TransactionPrepare:
		return n.handlePrepare(msg)

	case wire.TransactionCommit:
		return n.handleCommit(msg)

	case wire.TransactionAbort:
		n.handleAbort(msg)
		return nil

	default:
		return n.errorResponse(msg, "unsupported message type")
	}
}

func (n *Node) handleQuery(msg *wire.Message) *wire.Message {
	q, err := wire.DecodeData[queryData](msg.Data)
	if err != nil {
		return n.errorResponse(msg, err.Error())
	}

	var result queryResponse
	if q.FromCoordinator {
		result = n.executeLocally(q.SQL)
	} else {
		result = n.ExecuteQuery(q.SQL)
	}

	data, err := wire.EncodeData(result)
	if err != nil {
		return n.errorResponse(msg, err.Error())
	}
	resp, _ := wire.New(wire.QueryResponse, n.ID, &msg.SenderID, data)
	return resp
}

func (n *Node) handleReplication(msg *wire.Message) *wire.Message {
	r, err := wire.DecodeData[replicationData](msg.Data)
	if err != nil {
		return n.nackResponse(msg)
	}

	txnID := configs.NewTxnID(n.ID)
	res, err := n.exec.Execute(r.SQL, txnID)
	if err != nil || !res.Success {
		return n.nackResponse(msg)
	}
	resp, _ := wire.New(wire.ReplicationAck, n.ID, &msg.SenderID, map[string]interface{}{"transaction_id": txnID})
	return resp
}

func (n *Node) nackResponse(msg *wire.Message) *wire.Message {
	resp, _ := wire.New(wire.ReplicationNack, n.ID, &msg.SenderID, map[string]interface{}{})
	return resp
}

func (n *Node) handlePrepare(msg *wire.Message) *wire.Message {
	p, err := wire.DecodeData[prepareData](msg.Data)
	if err != nil {
		return n.errorResponse(msg, err.Error())
	}

	voteYes := n.participant.HandlePrepare(p.TxnID, p.Query)
	t := wire.TransactionVoteNo
	if voteYes {
		t = wire.TransactionVoteYes
	}
	resp, _ := wire.New(t, n.ID, &msg.SenderID, map[string]interface{}{"txn_id": p.TxnID})
	return resp
}

func (n *Node) handleCommit(msg *wire.Message) *wire.Message {
	c, err := wire.DecodeData[commitData](msg.Data)
	if err != nil {
		return n.errorResponse(msg, err.Error())
	}

	if err := n.participant.HandleCommit(c.TxnID); err != nil {
		errMsg := err.Error()
		if err == twopc.ErrCommitWithoutPrepare {
			errMsg = "commit received without a prior matching prepare"
		}
		return n.errorResponse(msg, errMsg)
	}
	resp, _ := wire.New(wire.Ack, n.ID, &msg.SenderID, map[string]interface{}{"txn_id": c.TxnID})
	return resp
}

func (n *Node) handleAbort(msg *wire.Message) {
	a, err := wire.DecodeData[abortData](msg.Data)
	if err != nil {
		return
	}
	n.participant.HandleAbort(a.TxnID)
}

func (n *Node) errorResponse(msg *wire.Message, errText string) *wire.Message {
	resp, _ := wire.New(wire.ErrorType, n.ID, &msg.SenderID, map[string]interface{}{"error": errText})
	return resp
}

// Package wire implements the cluster's length-prefixed, checksummed wire
// protocol (§4.1/§6 of the specification): every Message travels as a u32
// big-endian length followed by a canonical JSON payload.
package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Type is the closed set of wire message types (§6).
type Type string

const (
	Query                    Type = "QUERY"
	Replication              Type = "REPLICATION"
	Heartbeat                Type = "HEARTBEAT"
	HeartbeatAck             Type = "HEARTBEAT_ACK"
	Election                 Type = "ELECTION"
	ElectionOK               Type = "ELECTION_OK"
	CoordinatorAnnouncement  Type = "COORDINATOR_ANNOUNCEMENT"
	TransactionPrepare       Type = "TRANSACTION_PREPARE"
	TransactionVoteYes       Type = "TRANSACTION_VOTE_YES"
	TransactionVoteNo        Type = "TRANSACTION_VOTE_NO"
	TransactionCommit        Type = "TRANSACTION_COMMIT"
	TransactionAbort         Type = "TRANSACTION_ABORT"
	TransactionRollback      Type = "TRANSACTION_ROLLBACK"
	QueryResponse            Type = "QUERY_RESPONSE"
	ReplicationAck           Type = "REPLICATION_ACK"
	ReplicationNack          Type = "REPLICATION_NACK"
	ErrorType                Type = "ERROR"
	Ack                      Type = "ACK"
	NodeStatus               Type = "NODE_STATUS"
	HealthCheck              Type = "HEALTH_CHECK"
	HealthResponse           Type = "HEALTH_RESPONSE"
	LockRequest              Type = "LOCK_REQUEST"
	LockGranted              Type = "LOCK_GRANTED"
	LockDenied               Type = "LOCK_DENIED"
	LockRelease              Type = "LOCK_RELEASE"
)

// Message is the on-the-wire envelope, §3/§6.
type Message struct {
	MessageID  string                 `json:"message_id"`
	Type       Type                   `json:"type"`
	SenderID   int                    `json:"sender_id"`
	ReceiverID *int                   `json:"receiver_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data"`
	Checksum   string                 `json:"checksum"`
}

var msgSeq uint64

// NewMessageID returns a process-unique message identifier. Its format is
// free-form and it only needs to be unique per sender; like every field but
// checksum, it is covered by the checksum.
func NewMessageID(senderID int) string {
	seq := atomic.AddUint64(&msgSeq, 1)
	return fmt.Sprintf("MSG-%d-%d-%d", senderID, seq, time.Now().UnixNano())
}

// New builds a message and stamps its checksum. receiverID may be nil, in
// which case receiver_id is omitted from the message.
func New(t Type, senderID int, receiverID *int, data map[string]interface{}) (*Message, error) {
	m := &Message{
		MessageID:  NewMessageID(senderID),
		Type:       t,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
	if err := m.AddChecksum(); err != nil {
		return nil, err
	}
	return m, nil
}

// canonicalFields returns every field except checksum, ready for key-sorted
// marshaling: encoding a map[string]interface{} already sorts keys
// lexicographically, which is exactly what §4.1 requires of the checksum
// input.
func (m *Message) canonicalFields() map[string]interface{} {
	fields := map[string]interface{}{
		"message_id": m.MessageID,
		"type":       string(m.Type),
		"sender_id":  m.SenderID,
		"timestamp":  m.Timestamp.UTC().Format(time.RFC3339Nano),
		"data":       m.Data,
	}
	if m.ReceiverID != nil {
		fields["receiver_id"] = *m.ReceiverID
	}
	return fields
}

func (m *Message) computeChecksum() (string, error) {
	b, err := json.Marshal(m.canonicalFields())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// AddChecksum recomputes and stores m.Checksum.
func (m *Message) AddChecksum() error {
	sum, err := m.computeChecksum()
	if err != nil {
		return err
	}
	m.Checksum = sum
	return nil
}

// VerifyChecksum reports whether m.Checksum matches the canonical
// serialization of its other fields (§4.1, §8).
func (m *Message) VerifyChecksum() bool {
	want, err := m.computeChecksum()
	if err != nil {
		return false
	}
	return want == m.Checksum
}

// DecodeData JSON round-trips m.Data into a typed payload. Used by handlers
// to pull typed fields out of the generic data object without hand-rolled
// type assertions.
func DecodeData[T any](data map[string]interface{}) (T, error) {
	var out T
	b, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

// EncodeData JSON round-trips a typed payload into the generic data map
// carried by a Message.
func EncodeData(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

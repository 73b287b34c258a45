package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action tells the worker what happened to a transaction. The message
// carries only the id; the worker reloads the row from storage so a burst
// of edits converges on the final state.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// TransactionSyncMessage asks the export worker to reconcile one
// transaction with the export target.
type TransactionSyncMessage struct {
	TransactionID int64     `json:"transaction_id"`
	Action        Action    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64, action Action) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		TransactionID: id,
		Action:        action,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON parses and validates a message.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID <= 0 {
		return nil, fmt.Errorf("bad transaction id %d", msg.TransactionID)
	}
	switch msg.Action {
	case ActionUpsert, ActionDelete:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}

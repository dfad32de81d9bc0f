package amqp

import (
	"encoding/json"
	"time"

	"saldo/internal/events"
)

// LedgerCommittedMessage announces a committed ledger version.
// It carries no ledger content; consumers read the store themselves.
type LedgerCommittedMessage struct {
	Version   int64     `json:"version"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerCommittedMessage(c events.Change) *LedgerCommittedMessage {
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerCommittedMessage{
		Version:   c.Version,
		Operation: c.Operation,
		Timestamp: ts,
	}
}

func (m *LedgerCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerCommittedMessageFromJSON(data []byte) (*LedgerCommittedMessage, error) {
	var msg LedgerCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

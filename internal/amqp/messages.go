package amqp

import (
	"encoding/json"
	"time"
)

// Collections observed by the change-notification channel. Messages carry no
// payload; a consumer re-fetches the whole collection on every notification.
const (
	CollectionEntries     = "ledger_entries"
	CollectionJobs        = "jobs"
	CollectionReceivables = "receivables"
	CollectionCashConfig  = "cash_config"
)

// ChangeMessage announces that a collection changed for an owner.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	Owner      string    `json:"owner"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage creates a change notification for a collection.
func NewChangeMessage(collection, owner string) *ChangeMessage {
	return &ChangeMessage{
		Collection: collection,
		Owner:      owner,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

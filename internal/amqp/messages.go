package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Snapshot change actions.
const (
	ActionUploaded = "uploaded"
	ActionDeleted  = "deleted"
)

// SnapshotChangedMessage announces that the snapshot of a date was stored or
// removed. Consumers reload whatever they need from the database.
type SnapshotChangedMessage struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid snapshot message")

// NewSnapshotChangedMessage creates a message with a fresh id.
func NewSnapshotChangedMessage(date, action string) *SnapshotChangedMessage {
	return &SnapshotChangedMessage{
		ID:        uuid.NewString(),
		Date:      date,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotChangedMessageFromJSON decodes and validates a message.
func SnapshotChangedMessageFromJSON(data []byte) (*SnapshotChangedMessage, error) {
	var msg SnapshotChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Date == "" {
		return nil, ErrInvalidMessage
	}
	switch msg.Action {
	case ActionUploaded, ActionDeleted:
	default:
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashflow/internal/core"
)

// ProjectionRequestMessage asks the worker to regenerate one month. It carries only the
// month key; the worker reads the rules from the store.
type ProjectionRequestMessage struct {
	MonthKey  string    `json:"month_key"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProjectionRequestMessage creates a request stamped with the current time
func NewProjectionRequestMessage(monthKey, reason string) *ProjectionRequestMessage {
	return &ProjectionRequestMessage{
		MonthKey:  monthKey,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// Month returns the first day of the requested month.
func (m *ProjectionRequestMessage) Month() (core.Date, error) {
	return core.ParseMonthKey(m.MonthKey)
}

// ToJSON converts the message to JSON bytes
func (m *ProjectionRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ProjectionRequestMessageFromJSON decodes and validates a message.
func ProjectionRequestMessageFromJSON(data []byte) (*ProjectionRequestMessage, error) {
	var msg ProjectionRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.Month(); err != nil {
		return nil, fmt.Errorf("invalid projection request: %w", err)
	}
	return &msg, nil
}

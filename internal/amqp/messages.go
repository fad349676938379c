package amqp

import (
	"encoding/json"
	"time"
)

// PeriodClosedMessage announces a committed monthly closing. It carries only
// the period key and headline figures; the worker reloads the full snapshot
// from the database before acting on it.
type PeriodClosedMessage struct {
	Period              string    `json:"period"` // "YYYY-MM"
	ClosedAt            time.Time `json:"closed_at"`
	ClosingBalanceCents int64     `json:"closing_balance_cents"`
	Timestamp           time.Time `json:"timestamp"`
}

func NewPeriodClosedMessage(period string, closedAt time.Time, closingBalanceCents int64) *PeriodClosedMessage {
	return &PeriodClosedMessage{
		Period:              period,
		ClosedAt:            closedAt,
		ClosingBalanceCents: closingBalanceCents,
		Timestamp:           time.Now(),
	}
}

func (m *PeriodClosedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PeriodClosedMessageFromJSON(data []byte) (*PeriodClosedMessage, error) {
	var msg PeriodClosedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"time"

	"gestion/internal/core"
)

type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// MonthRef names a 0-indexed month of a year.
type MonthRef struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// MonthOf returns the month a date belongs to. The zero Date yields the zero MonthRef.
func MonthOf(d core.Date) MonthRef {
	if d.IsZero() {
		return MonthRef{}
	}
	return MonthRef{Month: int(d.Time.Month()) - 1, Year: d.Time.Year()}
}

// Valid reports whether the ref points at a real month.
func (m MonthRef) Valid() bool {
	return m.Year > 0 && m.Month >= 0 && m.Month < 12
}

// RecordChangedMessage announces a completed write. Months lists every month
// whose figures the write affected (old and new month on an edit).
type RecordChangedMessage struct {
	Kind      core.Kind  `json:"kind"`
	ID        string     `json:"id"`
	Op        Operation  `json:"op"`
	Months    []MonthRef `json:"months"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewRecordChangedMessage(kind core.Kind, id string, op Operation, months []MonthRef) *RecordChangedMessage {
	seen := make(map[MonthRef]struct{}, len(months))
	out := make([]MonthRef, 0, len(months))
	for _, m := range months {
		if !m.Valid() {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return &RecordChangedMessage{
		Kind:      kind,
		ID:        id,
		Op:        op,
		Months:    out,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON creates a message from JSON bytes
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package tap

import (
	"time"

	"github.com/c360/semlink/driver"
	"github.com/c360/semlink/envelope"
	"github.com/c360/semlink/vocabulary"
)

// Message is the JSON frame sent to tap clients for every driver event
type Message struct {
	Kind      string             `json:"kind"`
	Robot     string             `json:"robot,omitempty"`
	Topic     string             `json:"topic"`
	Payload   any                `json:"payload"`
	Envelope  *envelope.Envelope `json:"envelope,omitempty"`
	Match     *vocabulary.Match  `json:"match,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp int64              `json:"timestamp"` // Unix milliseconds
}

// FromEvent converts a driver event into a tap frame
func FromEvent(robot string, ev driver.Event, now time.Time) Message {
	msg := Message{
		Kind:      ev.Kind.String(),
		Robot:     robot,
		Topic:     ev.Topic,
		Payload:   ev.Payload.Value(),
		Envelope:  ev.Envelope,
		Match:     ev.Match,
		Timestamp: now.UnixMilli(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

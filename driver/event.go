package driver

import (
	"context"

	"github.com/c360/semlink/envelope"
	"github.com/c360/semlink/vocabulary"
)

// Kind classifies an inbound message
type Kind int

// Event kinds in classification priority order
const (
	KindNoise Kind = iota
	KindPrivate
	KindGlobal
	KindCommand
	KindIgnored
	KindMessage
)

// String returns the event name
func (k Kind) String() string {
	switch k {
	case KindNoise:
		return "noise"
	case KindPrivate:
		return "private"
	case KindGlobal:
		return "global"
	case KindCommand:
		return "command"
	case KindIgnored:
		return "ignored"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is emitted once per inbound message that is not a duplicate.
type Event struct {
	Kind  Kind
	Topic string
	// Payload is the envelope payload, or the raw bytes as text for noise
	Payload envelope.Payload
	// Raw is the message exactly as received
	Raw []byte
	// Envelope is nil for noise
	Envelope *envelope.Envelope
	// Match is set for command and ignored events
	Match *vocabulary.Match
	// Err explains why noise did not decode
	Err error
}

// Handler receives events. Handlers run on the transport's delivery
// goroutine and may call Send or Reply, but must not call Halt.
type Handler func(ctx context.Context, ev Event)

package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/c360/semlink/errors"
)

// Sender identifies the robot that produced an envelope. Topic, when set,
// is the private channel replies should be published to.
type Sender struct {
	Name  string `json:"name"`
	Host  string `json:"host"`
	Topic string `json:"topic,omitempty"`
}

// Envelope is the unit of exchange between cooperating robots.
type Envelope struct {
	ID       string  `json:"id"`
	ThreadID string  `json:"threadId"`
	Sender   Sender  `json:"sender"`
	Payload  Payload `json:"payload"`
	ReplyTo  string  `json:"replyTo,omitempty"`
}

// ReplyAddress returns the channel a reply to e must be published on.
// replyTo wins over sender.topic when both are present.
func (e *Envelope) ReplyAddress() string {
	if e == nil {
		return ""
	}
	if e.ReplyTo != "" {
		return e.ReplyTo
	}
	return e.Sender.Topic
}

// Replyable reports whether e carries both a reply address and a thread.
func (e *Envelope) Replyable() bool {
	return e != nil && e.ReplyAddress() != "" && e.ThreadID != ""
}

// Payload is either free text or a structured object, never both.
// The zero value is an empty text payload, which fails validation.
type Payload struct {
	text   string
	object map[string]any
}

// TextPayload creates a free-text payload.
func TextPayload(text string) Payload {
	return Payload{text: text}
}

// ObjectPayload creates a structured payload. A nil map is treated as an empty object.
func ObjectPayload(object map[string]any) Payload {
	if object == nil {
		object = map[string]any{}
	}
	return Payload{object: object}
}

// PayloadFrom converts an arbitrary value into a Payload. Strings become text,
// maps and structs become objects via their JSON form. Values whose JSON form is
// not an object (numbers, arrays, null) are rejected.
func PayloadFrom(v any) (Payload, error) {
	switch val := v.(type) {
	case Payload:
		return val, nil
	case *Payload:
		if val == nil {
			break
		}
		return *val, nil
	case string:
		return TextPayload(val), nil
	case map[string]any:
		return ObjectPayload(val), nil
	case json.RawMessage:
		var p Payload
		if err := p.UnmarshalJSON(val); err != nil {
			return Payload{}, err
		}
		return p, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, errors.WrapInvalid(err, "Payload", "PayloadFrom", "marshal value")
	}
	var object map[string]any
	if err := json.Unmarshal(data, &object); err != nil || object == nil {
		return Payload{}, errors.WrapInvalid(
			fmt.Errorf("%w: payload must be a string or an object, got %T", errors.ErrInvalidEnvelope, v),
			"Payload", "PayloadFrom", "convert value")
	}
	return ObjectPayload(object), nil
}

// IsText reports whether the payload is free text.
func (p Payload) IsText() bool { return p.object == nil }

// IsObject reports whether the payload is a structured object.
func (p Payload) IsObject() bool { return p.object != nil }

// IsZero reports whether the payload is empty text.
func (p Payload) IsZero() bool { return p.object == nil && p.text == "" }

// Text returns the text payload, or "" for objects.
func (p Payload) Text() string { return p.text }

// Object returns the object payload, or nil for text.
func (p Payload) Object() map[string]any { return p.object }

// Value returns the payload as a string or map[string]any.
func (p Payload) Value() any {
	if p.object != nil {
		return p.object
	}
	return p.text
}

// String renders text as-is and objects as compact JSON.
func (p Payload) String() string {
	if p.object == nil {
		return p.text
	}
	data, err := json.Marshal(p.object)
	if err != nil {
		return fmt.Sprintf("%v", p.object)
	}
	return string(data)
}

// MarshalJSON implements json.Marshaler
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.object != nil {
		return json.Marshal(p.object)
	}
	return json.Marshal(p.text)
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty payload", errors.ErrInvalidEnvelope)
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*p = TextPayload(text)
		return nil
	case '{':
		var object map[string]any
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return err
		}
		*p = ObjectPayload(object)
		return nil
	default:
		return fmt.Errorf("%w: payload must be a string or an object", errors.ErrInvalidEnvelope)
	}
}

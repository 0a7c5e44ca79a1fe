package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// MockClock is a settable clock for time-dependent components.
// Thread-safe for concurrent use.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a clock frozen at start
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the current mock time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RawEnvelope describes an inbound envelope as another robot would put it
// on the wire. Empty fields are omitted so tests can build invalid ones.
type RawEnvelope struct {
	ID          string
	ThreadID    string
	SenderName  string
	SenderHost  string
	SenderTopic string
	ReplyTo     string
	Payload     any
}

// Bytes serializes the envelope to JSON
func (r RawEnvelope) Bytes(t testing.TB) []byte {
	t.Helper()

	sender := map[string]any{}
	if r.SenderName != "" {
		sender["name"] = r.SenderName
	}
	if r.SenderHost != "" {
		sender["host"] = r.SenderHost
	}
	if r.SenderTopic != "" {
		sender["topic"] = r.SenderTopic
	}

	msg := map[string]any{"sender": sender}
	if r.ID != "" {
		msg["id"] = r.ID
	}
	if r.ThreadID != "" {
		msg["threadId"] = r.ThreadID
	}
	if r.ReplyTo != "" {
		msg["replyTo"] = r.ReplyTo
	}
	if r.Payload != nil {
		msg["payload"] = r.Payload
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return data
}

// Envelope returns a valid text envelope from a peer robot. ThreadID equals id.
func Envelope(t testing.TB, id, text string) []byte {
	t.Helper()
	return RawEnvelope{
		ID:          id,
		ThreadID:    id,
		SenderName:  "petya",
		SenderHost:  "peer-host",
		SenderTopic: "petya",
		Payload:     text,
	}.Bytes(t)
}

// KitchenTree is a small two-level command tree
func KitchenTree() map[string]any {
	return map[string]any{
		"kitchen": map[string]any{
			"light": map[string]any{
				"on":  "on",
				"off": "off",
			},
		},
	}
}

// DecodeJSON unmarshals data into a generic map
func DecodeJSON(t testing.TB, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to unmarshal %q: %v", data, err)
	}
	return m
}

package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/natsclient"
)

type subscription struct {
	subject string
	handler func(context.Context, string, []byte)
}

// MockTransport is an in-memory pub/sub bus with the same surface as
// natsclient.Client. Published messages are recorded and delivered
// synchronously to matching subscribers, including the publisher's own.
// Thread-safe for concurrent use.
type MockTransport struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions []subscription
	closed        bool
	closeCalls    int

	// Error injection
	SubscribeErr error
	PublishErr   error
	CloseErr     error

	// PublishGate, when set, holds every Publish until it is closed or the
	// publish ctx is cancelled
	PublishGate chan struct{}
}

// NewMockTransport creates an empty bus
func NewMockTransport() *MockTransport {
	return &MockTransport{
		messages: make(map[string][][]byte),
	}
}

// Publish records data and delivers it to subscribers of subject
func (c *MockTransport) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.RLock()
	gate := c.PublishGate
	c.mu.RUnlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return errors.WrapTransport(ctx.Err(), "MockTransport", "Publish", fmt.Sprintf("publish to %s", subject))
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.WrapTransport(errors.ErrNoConnection, "MockTransport", "Publish", "check connection")
	}
	if c.PublishErr != nil {
		err := c.PublishErr
		c.mu.Unlock()
		return errors.WrapTransport(err, "MockTransport", "Publish", fmt.Sprintf("publish to %s", subject))
	}
	c.messages[subject] = append(c.messages[subject], slices.Clone(data))
	handlers := c.handlersFor(subject)
	c.mu.Unlock()

	// Handlers run outside the lock so they may publish
	for _, h := range handlers {
		h(ctx, subject, data)
	}
	return nil
}

// Deliver hands data to subscribers of subject as if it arrived from another
// peer. It is not recorded as published.
func (c *MockTransport) Deliver(ctx context.Context, subject string, data []byte) int {
	c.mu.RLock()
	handlers := c.handlersFor(subject)
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, subject, data)
	}
	return len(handlers)
}

func (c *MockTransport) handlersFor(subject string) []func(context.Context, string, []byte) {
	var handlers []func(context.Context, string, []byte)
	for _, sub := range c.subscriptions {
		if sub.subject == subject {
			handlers = append(handlers, sub.handler)
		}
	}
	return handlers
}

// Subscribe registers handler for subject
func (c *MockTransport) Subscribe(ctx context.Context, subject string, handler func(context.Context, string, []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.WrapTransport(errors.ErrNoConnection, "MockTransport", "Subscribe", "check connection")
	}
	if c.SubscribeErr != nil {
		return errors.WrapTransport(c.SubscribeErr, "MockTransport", "Subscribe", fmt.Sprintf("subscribe to %s", subject))
	}
	c.subscriptions = append(c.subscriptions, subscription{subject: subject, handler: handler})
	return nil
}

// Close drops all subscriptions. Later publishes fail.
func (c *MockTransport) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	c.closed = true
	c.subscriptions = nil
	return c.CloseErr
}

// IsClosed reports whether Close was called
func (c *MockTransport) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// CloseCalls returns how many times Close was called
func (c *MockTransport) CloseCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closeCalls
}

// Subjects returns the subscribed subjects in subscription order
func (c *MockTransport) Subjects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subjects := make([]string, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subjects = append(subjects, sub.subject)
	}
	return subjects
}

// GetMessages returns a copy of everything published to subject
func (c *MockTransport) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// GetMessageCount returns the number of messages published to subject
func (c *MockTransport) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// PublishedSubjects returns every subject that received at least one message, sorted
func (c *MockTransport) PublishedSubjects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subjects := make([]string, 0, len(c.messages))
	for s, msgs := range c.messages {
		if len(msgs) > 0 {
			subjects = append(subjects, s)
		}
	}
	slices.Sort(subjects)
	return subjects
}

// ClearAll forgets all recorded messages
func (c *MockTransport) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make(map[string][][]byte)
}

// WaitForMessageCount waits until subject has at least count messages
func WaitForMessageCount(t testing.TB, client *MockTransport, subject string, count int, timeout time.Duration) [][]byte {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if msgs := client.GetMessages(subject); len(msgs) >= count {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
				count, subject, client.GetMessageCount(subject))
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// WaitForMessage waits for a message on subject and returns the latest one
func WaitForMessage(t testing.TB, client *MockTransport, subject string, timeout time.Duration) []byte {
	t.Helper()
	msgs := WaitForMessageCount(t, client, subject, 1, timeout)
	return msgs[len(msgs)-1]
}

// AssertNoMessages fails if anything was published to subject
func AssertNoMessages(t testing.TB, client *MockTransport, subject string) {
	t.Helper()
	if n := client.GetMessageCount(subject); n > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}

// NewNATSContainer starts a NATS server for the test and returns its URL.
// The container is terminated on cleanup.
func NewNATSContainer(t testing.TB, opts ...natsclient.TestOption) string {
	t.Helper()

	ctx := context.Background()
	container, url, err := natsclient.StartNATSContainer(ctx, opts...)
	if err != nil {
		t.Fatalf("failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return url
}

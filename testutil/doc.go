// Package testutil provides in-memory fakes and fixtures for semlink tests.
//
// MockTransport is an in-memory pub/sub bus with the Subscribe, Publish and
// Close surface of natsclient.Client. It records published messages, delivers
// them synchronously to subscribers and supports error injection:
//
//	bus := testutil.NewMockTransport()
//	d, _ := driver.New(cfg, bus, vocab)
//	_ = d.Start(ctx)
//	bus.Deliver(ctx, "vasya", testutil.Envelope(t, "id-1", "hello"))
//	msgs := testutil.WaitForMessageCount(t, bus, "petya", 1, time.Second)
//
// RawEnvelope builds inbound wire messages, including deliberately invalid
// ones. MockClock drives time-dependent components such as the dedup cache.
//
// NewNATSContainer starts a real NATS server with testcontainers for tests
// built with the integration tag.
package testutil

// Package natsclient provides the NATS transport used by the semlink driver:
// a core pub/sub client with circuit breaker protection, reconnection handling
// and drain-on-close.
//
// The client wraps the standard NATS Go client. Topics map one to one onto
// NATS subjects, so a robot listening on "kitchen" subscribes to the subject
// "kitchen". No JetStream or key-value features are used; delivery is
// at-most-once and duplicates are filtered by the driver.
//
// # Circuit Breaker
//
// Consecutive connection failures are counted. Once the threshold (default 5)
// is reached the circuit opens and Connect returns ErrCircuitOpen until the
// backoff elapses. The backoff doubles on each further failure up to the
// configured maximum (default one minute). A successful connect resets it.
//
// # Lifecycle
//
// Disconnected → Connecting → Connected → Reconnecting → Connected. Callbacks
// for disconnect, reconnect, health change and final connection loss can be
// registered with options. Close unsubscribes, drains within the drain timeout
// or the context deadline, and clears credentials.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("vasya"),
//	    natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Subscribe(ctx, "kitchen", func(msgCtx context.Context, subject string, data []byte) {
//	    // msgCtx is bounded by the handler timeout (default 30s)
//	})
//	err = client.Publish(ctx, "kitchen", data)
//
// # Errors
//
// Connect, Subscribe and Publish failures are wrapped with errors.WrapTransport,
// so they match errors.ErrTransport and classify as transient.
//
// # Testing
//
// NewTestClient and NewSharedTestClient start a NATS server with
// testcontainers and return a connected client. Tests that use them carry the
// integration build tag.
package natsclient

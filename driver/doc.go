// Package driver is the routing engine of a semlink robot. It subscribes to
// the robot's listen set on a pub/sub transport, turns every inbound message
// into at most one typed Event, and publishes outbound envelopes on per-topic
// FIFO lanes.
//
// # Classification
//
// Each inbound (topic, bytes) pair is classified in this order:
//
//  1. Bytes that do not decode as an envelope are noise. Noise is
//     deduplicated by a hash of its content and never escalated.
//  2. A message on the private topic is a private event.
//  3. A message on the global topic is a global event.
//  4. A message whose id was already seen within the dedup window is dropped.
//  5. With a command tree configured, a text payload is heard against the
//     tree: command when a command matches, ignored otherwise.
//  6. Anything else is a message event.
//
// Private and global traffic bypasses dedup and command parsing.
//
// # Outbound
//
// Send encodes a fresh envelope and queues it for every channel. Topic("...")
// is implicit addressing: with a command tree the text is tokenized into the
// channels it mentions. List(...) is literal. Reply continues the thread of a
// source envelope on its reply address and returns errors.ErrNotReplyable
// when there is none. Publishing happens on lanes keyed by topic, so the
// caller is not blocked on the network and per-topic order is kept.
//
// # Lifecycle
//
// created → running → halted. Start derives the listen set once and
// subscribes; Halt stops emission, cancels the prune sweep, drains queued
// publishes and closes the transport. A halted driver cannot be restarted.
//
//	drv, err := driver.New(cfg, natsClient, matcher, driver.WithLogger(logger))
//	drv.OnEvent(func(ctx context.Context, ev driver.Event) {
//	    if ev.Kind == driver.KindCommand {
//	        _, _ = drv.Reply(ctx, ev.Envelope, ev.Match.Command)
//	    }
//	})
//	if err := drv.Start(ctx); err != nil {
//	    return err
//	}
//	defer drv.Halt(context.Background())
package driver

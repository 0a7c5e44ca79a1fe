package driver

import (
	"context"
	"fmt"

	"github.com/c360/semlink/envelope"
)

// handleMessage is the transport callback for every subscribed topic
func (d *Driver) handleMessage(ctx context.Context, topic string, data []byte) {
	d.mu.RLock()
	if d.state != StateRunning {
		d.mu.RUnlock()
		return
	}
	d.inflight.Add(1)
	d.mu.RUnlock()
	defer d.inflight.Done()

	d.stats.received.Add(1)
	d.stats.touch(d.now())
	if d.metrics != nil {
		d.metrics.RecordMessageReceived(d.cfg.Name)
	}

	ev, ok := d.classify(topic, data)
	if !ok {
		return
	}
	d.emit(ctx, ev)
}

// classify turns one inbound message into at most one event. Priority:
// undecodable bytes are noise (deduplicated by content hash); the private
// and global topics short-circuit dedup and command parsing; otherwise the
// envelope id is deduplicated and a text payload is heard against the
// command tree. Everything else is a plain message.
func (d *Driver) classify(topic string, data []byte) (Event, bool) {
	env, err := d.codec.Decode(data)
	if err != nil {
		if d.dedup.Seen(envelope.Identity(data)) {
			d.stats.duplicates.Add(1)
			return Event{}, false
		}
		d.stats.noise.Add(1)
		d.logNoise(topic, data, err)
		return Event{
			Kind:    KindNoise,
			Topic:   topic,
			Payload: envelope.TextPayload(string(data)),
			Raw:     data,
			Err:     err,
		}, true
	}

	ev := Event{
		Topic:    topic,
		Payload:  env.Payload,
		Raw:      data,
		Envelope: env,
	}

	switch {
	case d.cfg.PrivateTopic != "" && topic == d.cfg.PrivateTopic:
		ev.Kind = KindPrivate
		return ev, true
	case d.cfg.GlobalTopic != "" && topic == d.cfg.GlobalTopic:
		ev.Kind = KindGlobal
		return ev, true
	}

	if d.dedup.Seen(env.ID) {
		d.stats.duplicates.Add(1)
		d.logger.Debug("Duplicate dropped", "id", env.ID, "topic", topic)
		return Event{}, false
	}

	if !d.tree.Empty() && env.Payload.IsText() {
		match := d.vocab.Hear(env.Payload.Text())
		ev.Match = &match
		if match.Found {
			ev.Kind = KindCommand
		} else {
			ev.Kind = KindIgnored
		}
		return ev, true
	}

	ev.Kind = KindMessage
	return ev, true
}

// logNoise logs undecodable traffic at a bounded rate
func (d *Driver) logNoise(topic string, data []byte, err error) {
	if !d.noiseLog.Allow() {
		return
	}
	d.stats.noiseLogged.Add(1)

	sample := data
	if len(sample) > 64 {
		sample = sample[:64]
	}
	d.logger.Debug("Noise received", "topic", topic, "bytes", len(data),
		"sample", fmt.Sprintf("%q", sample), "error", err)
}

// emit delivers ev to every handler, isolating handler panics
func (d *Driver) emit(ctx context.Context, ev Event) {
	d.stats.emitted[ev.Kind].Add(1)
	if d.metrics != nil {
		d.metrics.RecordEvent(d.cfg.Name, ev.Kind.String())
	}

	d.handlersMu.RLock()
	handlers := d.handlers
	d.handlersMu.RUnlock()

	for _, h := range handlers {
		d.dispatch(ctx, h, ev)
	}
}

func (d *Driver) dispatch(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event handler panicked", "kind", ev.Kind.String(), "topic", ev.Topic, "panic", r)
		}
	}()
	h(ctx, ev)
}

package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/c360/semlink/envelope"
	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/pkg/worker"
)

// ErrNoChannels is returned when an address resolves to no channel
var ErrNoChannels = stderrors.New("no channels resolved")

// Send encodes payload in a fresh envelope and queues it for every resolved
// channel. It returns once the message is queued; publishes on the same
// channel happen in call order. Payload may be a string, a map, an
// envelope.Payload or any value that encodes as a JSON object. When any
// channel's lane is full nothing is queued and a transient error is returned.
func (d *Driver) Send(ctx context.Context, channels Channels, payload any) (*envelope.Envelope, error) {
	if err := d.checkRunning("Send"); err != nil {
		return nil, err
	}

	p, err := envelope.PayloadFrom(payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Driver", "Send", "convert payload")
	}

	targets, err := d.resolve(channels)
	if err != nil {
		return nil, err
	}

	data, env, err := d.codec.Encode(p, nil)
	if err != nil {
		return nil, err
	}

	if err := d.enqueue(ctx, "Send", targets, data); err != nil {
		return env, err
	}
	return env, nil
}

// Reply sends payload to the reply address of source, continuing its thread.
// It returns ErrNotReplyable, and publishes nothing, when source has no
// reply address or no threadId.
func (d *Driver) Reply(ctx context.Context, source *envelope.Envelope, payload any) (*envelope.Envelope, error) {
	if !source.Replyable() {
		return nil, errors.ErrNotReplyable
	}
	if err := d.checkRunning("Reply"); err != nil {
		return nil, err
	}

	p, err := envelope.PayloadFrom(payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Driver", "Reply", "convert payload")
	}

	data, env, err := d.codec.Encode(p, source)
	if err != nil {
		return nil, err
	}

	if err := d.enqueue(ctx, "Reply", []string{source.ReplyAddress()}, data); err != nil {
		return env, err
	}
	return env, nil
}

// SendRaw queues data unchanged for every resolved channel
func (d *Driver) SendRaw(ctx context.Context, channels Channels, data []byte) error {
	if err := d.checkRunning("SendRaw"); err != nil {
		return err
	}
	targets, err := d.resolve(channels)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, "SendRaw", targets, data)
}

// resolve turns an address into concrete channels. A single topic is
// tokenized against the vocabulary only when a command tree is configured.
func (d *Driver) resolve(channels Channels) ([]string, error) {
	var targets []string
	switch {
	case channels.IsList():
		for _, ch := range channels.list {
			if ch != "" {
				targets = append(targets, ch)
			}
		}
	case !d.tree.Empty():
		targets = d.vocab.ExtractTokens(channels.topic, d.cfg.MinTokenLength)
	case channels.topic != "":
		targets = []string{channels.topic}
	}

	if len(targets) == 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", ErrNoChannels, channels),
			"Driver", "resolve", "resolve channels")
	}
	return targets, nil
}

// enqueue submits one publish per channel on that channel's lane. Either
// every channel is queued or none is.
func (d *Driver) enqueue(ctx context.Context, method string, targets []string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Driver", method, "queue publish")
	}

	err := d.lanes.SubmitAll(targets, func(topic string) publishJob {
		return publishJob{topic: topic, data: data}
	})
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, worker.ErrPoolStopped), stderrors.Is(err, worker.ErrPoolNotStarted):
		return errors.WrapFatal(errors.ErrHalted, "Driver", method, "queue publish")
	default:
		return errors.WrapTransient(err, "Driver", method, fmt.Sprintf("queue publish to %s", strings.Join(targets, ",")))
	}
}

// publish runs on a lane goroutine
func (d *Driver) publish(ctx context.Context, job publishJob) error {
	err := d.transport.Publish(ctx, job.topic, job.data)
	if err != nil {
		d.stats.publishErrors.Add(1)
		if d.metrics != nil {
			d.metrics.RecordPublishError(d.cfg.Name)
		}
		d.logger.Warn("Publish failed", "topic", job.topic, "error", err)

		d.handlersMu.RLock()
		hook := d.onPublishError
		d.handlersMu.RUnlock()
		if hook != nil {
			hook(job.topic, err)
		}
		return err
	}

	d.stats.published.Add(1)
	if d.metrics != nil {
		d.metrics.RecordMessagePublished(d.cfg.Name, job.topic)
	}
	return nil
}

func (d *Driver) checkRunning(method string) error {
	switch d.State() {
	case StateRunning:
		return nil
	case StateCreated:
		return errors.WrapInvalid(errors.ErrNotStarted, "Driver", method, "check state")
	default:
		return errors.WrapFatal(errors.ErrHalted, "Driver", method, "check state")
	}
}

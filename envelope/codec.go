package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/c360/semlink/errors"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// NoisePrefix marks identities derived from raw content rather than an envelope id.
const NoisePrefix = "noise:"

// Codec builds outbound envelopes for one sender and decodes inbound bytes.
// It is safe for concurrent use.
type Codec struct {
	sender  Sender
	replyTo string
	newID   func() string
	schema  *gojsonschema.Schema
}

// Option configures a Codec.
type Option func(*Codec)

// WithReplyTo sets an explicit replyTo channel on every outbound envelope.
func WithReplyTo(topic string) Option {
	return func(c *Codec) {
		c.replyTo = topic
	}
}

// WithIDGenerator replaces the UUID v4 generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Codec) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewCodec creates a codec that stamps sender on every envelope it encodes.
// The sender is not checked here; Encode rejects envelopes built from an
// incomplete sender.
func NewCodec(sender Sender, opts ...Option) (*Codec, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, errors.WrapFatal(err, "Codec", "NewCodec", "compile envelope schema")
	}

	c := &Codec{
		sender: sender,
		newID:  uuid.NewString,
		schema: schema,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sender returns the credentials stamped on outbound envelopes.
func (c *Codec) Sender() Sender {
	return c.sender
}

// Encode builds and serializes a fresh envelope. When reply is non-nil the
// new envelope continues reply's thread; otherwise threadId equals the new id.
func (c *Codec) Encode(payload Payload, reply *Envelope) ([]byte, *Envelope, error) {
	id := c.newID()
	env := &Envelope{
		ID:       id,
		ThreadID: id,
		Sender:   c.sender,
		Payload:  payload,
		ReplyTo:  c.replyTo,
	}
	if reply != nil {
		env.ThreadID = reply.ThreadID
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidEnvelope, err),
			"Codec", "Encode", "marshal envelope")
	}
	if err := c.validate(data); err != nil {
		return nil, nil, errors.WrapInvalid(err, "Codec", "Encode", "validate envelope")
	}
	return data, env, nil
}

// Decode parses and validates inbound bytes. It returns ErrMalformedMessage
// when data is not JSON and ErrInvalidEnvelope when it violates the schema.
func (c *Codec) Decode(data []byte) (*Envelope, error) {
	if !json.Valid(data) {
		return nil, errors.WrapInvalid(errors.ErrMalformedMessage, "Codec", "Decode", "parse message")
	}
	if err := c.validate(data); err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "Decode", "validate envelope")
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidEnvelope, err),
			"Codec", "Decode", "unmarshal envelope")
	}
	return &env, nil
}

// Validate checks raw bytes against the envelope schema without decoding them.
func (c *Codec) Validate(data []byte) error {
	if !json.Valid(data) {
		return errors.WrapInvalid(errors.ErrMalformedMessage, "Codec", "Validate", "parse message")
	}
	if err := c.validate(data); err != nil {
		return errors.WrapInvalid(err, "Codec", "Validate", "validate envelope")
	}
	return nil
}

// ValidateEnvelope checks an already constructed envelope against the schema.
func (c *Codec) ValidateEnvelope(env *Envelope) error {
	if env == nil {
		return errors.WrapInvalid(fmt.Errorf("%w: nil envelope", errors.ErrInvalidEnvelope),
			"Codec", "ValidateEnvelope", "validate envelope")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidEnvelope, err),
			"Codec", "ValidateEnvelope", "marshal envelope")
	}
	if err := c.validate(data); err != nil {
		return errors.WrapInvalid(err, "Codec", "ValidateEnvelope", "validate envelope")
	}
	return nil
}

func (c *Codec) validate(data []byte) error {
	ok, err := validateBytes(c.schema, data)
	if ok {
		return nil
	}
	return fmt.Errorf("%w: %w", errors.ErrInvalidEnvelope, err)
}

// Identity returns the content-hash identity used to deduplicate traffic
// that has no envelope id.
func Identity(raw []byte) string {
	sum := sha256.Sum256(raw)
	return NoisePrefix + hex.EncodeToString(sum[:])
}

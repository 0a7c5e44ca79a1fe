// Package errors provides standardized error handling patterns for semlink.
//
// # Error Classification
//
// Every error belongs to one of three classes:
//
//   - Transient: transport timeouts, lost connections, full publish queues (retry may help)
//   - Invalid: malformed inbound bytes, envelopes that fail the schema, non-replyable sources
//   - Fatal: bad configuration, a halted driver (stop and reconstruct)
//
// # Protocol Sentinels
//
//	errors.ErrMalformedMessage // bytes are not a JSON object
//	errors.ErrInvalidEnvelope  // JSON object that violates the envelope schema
//	errors.ErrNotReplyable     // Reply() source lacks a reply address or thread
//	errors.ErrTransport        // connect, subscribe or publish failed
//
// Inbound MalformedMessage and InvalidEnvelope never leave the driver: they are
// turned into noise events. Outbound they mean the caller built a bad envelope
// and are returned from Send and Reply.
//
// # Wrapping
//
// All wrapping follows the format
//
//	"component.method: action failed: %w"
//
// and the classified variants keep errors.Is/errors.As working through the chain:
//
//	errors.WrapInvalid(err, "Codec", "Decode", "schema validation")
//	errors.WrapTransport(err, "Driver", "Start", "subscribe")
package errors

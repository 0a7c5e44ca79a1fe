// Package envelope implements the wire format exchanged by semlink robots.
//
// An envelope is a JSON object:
//
//	{
//	  "id": "7d6c...",
//	  "threadId": "7d6c...",
//	  "sender": {"name": "vasya", "host": "kitchen-pi", "topic": "vasya"},
//	  "payload": "light on"
//	}
//
// payload is either a non-empty string or an object. sender.topic and replyTo
// are optional reply addresses. A Codec stamps its sender on every envelope it
// encodes and validates both directions against SchemaJSON.
//
// Decode failures are classified invalid and wrap ErrMalformedMessage (not JSON)
// or ErrInvalidEnvelope (schema violation). Callers receiving foreign traffic
// treat both as noise and use Identity to deduplicate it by content.
package envelope

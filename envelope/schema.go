package envelope

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaJSON is the JSON Schema every envelope on the wire must satisfy.
const SchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "threadId", "sender", "payload"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "threadId": {"type": "string", "minLength": 1},
    "replyTo": {"type": "string", "minLength": 1},
    "payload": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {"type": "object"}
      ]
    },
    "sender": {
      "type": "object",
      "required": ["name", "host"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "host": {"type": "string", "minLength": 1},
        "topic": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(SchemaJSON))
})

// validateBytes checks data against the envelope schema. The returned error
// lists every violation as "field: description".
func validateBytes(schema *gojsonschema.Schema, data []byte) (bool, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return false, err
	}
	if result.Valid() {
		return true, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return false, fmt.Errorf("%s", strings.Join(violations, "; "))
}

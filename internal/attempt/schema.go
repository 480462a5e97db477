package attempt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const rawSchemaURL = "schema://attempt-raw.json"

// rawSchema describes the JSON shape accepted for a raw attempt record. It
// only checks types; missing skill or time are reported by Normalize.
const rawSchema = `{
  "type": "object",
  "properties": {
    "id":             {"type": "string"},
    "session_id":     {"type": ["string", "null"]},
    "question_id":    {"type": ["string", "null"]},
    "skill":          {"type": ["string", "null"]},
    "topic":          {"type": ["string", "null"]},
    "subject":        {"type": ["string", "null"]},
    "difficulty":     {"type": ["string", "null"]},
    "correct":        {"type": ["boolean", "null"]},
    "is_correct":     {"type": ["boolean", "null"]},
    "occurred_at":    {"type": ["string", "null"]},
    "created_at":     {"type": ["string", "null"]},
    "timestamp":      {"type": ["string", "null"]},
    "occurred_at_ms": {"type": ["integer", "null"], "minimum": 0},
    "source":         {"type": ["string", "null"]}
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func rawValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(rawSchema))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(rawSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(rawSchemaURL)
	})
	return compiled, compileErr
}

// DecodeJSON validates data against the raw attempt schema and decodes it.
// Validation and decode failures are *ErrMalformedEvent.
func DecodeJSON(data []byte) (Raw, error) {
	sch, err := rawValidator()
	if err != nil {
		return Raw{}, fmt.Errorf("compile attempt schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Raw{}, malformed("", fmt.Errorf("invalid JSON: %w", err))
	}
	if err := sch.Validate(doc); err != nil {
		return Raw{}, malformed("", fmt.Errorf("schema validation failed: %w", err))
	}

	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return Raw{}, malformed("", fmt.Errorf("decode: %w", err))
	}
	return raw, nil
}

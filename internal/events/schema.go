package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// RosterEventSchema is the JSON schema registered for every roster payload.
const RosterEventSchema = `{
  "type": "object",
  "title": "RosterEvent",
  "properties": {
    "event_id": {"type": "string", "minLength": 1},
    "activity": {"type": "string", "minLength": 1},
    "email": {"type": "string", "minLength": 1},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity", "email", "occurred_at"],
  "additionalProperties": false
}`

// ErrSchemaViolation is returned when a payload does not match RosterEventSchema.
var ErrSchemaViolation = errors.New("roster payload violates schema")

var (
	compileOnce    sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// ValidateRoster checks a JSON payload against RosterEventSchema.
func ValidateRoster(payload []byte) error {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(RosterEventSchema))
	})
	if compileErr != nil {
		return fmt.Errorf("compile roster schema: %w", compileErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(problems, "; "))
}

package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxStepContentLen bounds the stored size of a single step.
const MaxStepContentLen = 20000

// ErrInvalidStepContent wraps every rejection made by ValidateStepContent.
var ErrInvalidStepContent = errors.New("invalid step content")

const step1Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "personality": {"type": "string"},
    "purpose":     {"type": "string"},
    "tone":        {"type": "string"}
  }
}`

const step2Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "rules": {"anyOf": [{"type": "string"}, {"type": "array", "items": {"type": "string"}}]},
    "faq":   {"anyOf": [{"type": "string"}, {"type": "array", "items": {"type": "string"}}]}
  }
}`

var stepSchemas = map[int]*jsonschema.Schema{
	1: mustCompile("step1.json", step1Schema),
	2: mustCompile("step2.json", step2Schema),
}

func mustCompile(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("prompt: load %s: %v", name, err))
	}
	s, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("prompt: compile %s: %v", name, err))
	}
	return s
}

// StepSchema returns the compiled schema for a step number, or nil.
func StepSchema(step int) *jsonschema.Schema { return stepSchemas[step] }

// ValidateStepContent checks content before it is stored. Step 1 must be a
// JSON object of string fields. Step 2 may also be plain text.
func ValidateStepContent(step int, content string) error {
	schema := StepSchema(step)
	if schema == nil {
		return fmt.Errorf("%w: unknown step %d", ErrInvalidStepContent, step)
	}
	if len(content) > MaxStepContentLen {
		return fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidStepContent, MaxStepContentLen)
	}
	trimmed := strings.TrimSpace(content)
	if step == 2 && trimmed != "" && !looksLikeJSON(trimmed) {
		return nil
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return fmt.Errorf("%w: step %d is not valid JSON: %v", ErrInvalidStepContent, step, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStepContent, err)
	}
	return nil
}

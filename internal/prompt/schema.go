package prompt

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for structured output.
type Schema struct {
	raw      []byte
	compiled *gojsonschema.Schema
}

// CompileSchema parses and compiles a JSON schema so a broken schema is
// reported before any model is contacted.
func CompileSchema(data []byte) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{raw: data, compiled: compiled}, nil
}

// Raw returns the schema as given.
func (s *Schema) Raw() []byte {
	return s.raw
}

// Check validates model output against the schema.
func (s *Schema) Check(output string) error {
	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(strings.TrimSpace(output)))
	if err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("output does not match schema: %s", strings.Join(problems, "; "))
}

// Package schemagate validates untrusted generator output against embedded
// JSON schemas. The engine accepts nothing from the generator boundary that
// has not passed through here first.
package schemagate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Error is a generator contract violation: raw output that does not conform
// to the expected shape. Fields names the offending instance locations so
// FAILED diagnostics can surface them.
type Error struct {
	Artifact string
	Fields   []string
	Detail   string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s schema violation: %s", e.Artifact, e.Detail)
	}
	return fmt.Sprintf("%s schema violation at %s: %s", e.Artifact, strings.Join(e.Fields, ", "), e.Detail)
}

func MustCompile(name, schema string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, schema)
}

// Validate checks raw JSON bytes against a compiled schema. Failures come
// back as *Error, never as a panic or a bare unmarshal error.
func Validate(artifact string, schema *jsonschema.Schema, raw []byte) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &Error{Artifact: artifact, Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := schema.Validate(instance); err != nil {
		return flatten(artifact, err)
	}
	return nil
}

// Violation wraps a non-schema structural failure (decoded-value invariants,
// provenance resolution) into the same error shape.
func Violation(artifact string, fields []string, detail string) *Error {
	return &Error{Artifact: artifact, Fields: fields, Detail: detail}
}

// flatten reduces a jsonschema validation error tree to leaf instance
// locations plus one human-readable detail line.
func flatten(artifact string, err error) *Error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &Error{Artifact: artifact, Detail: err.Error()}
	}
	fields := map[string]bool{}
	var details []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				loc = "(root)"
			}
			fields[loc] = true
			details = append(details, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return &Error{Artifact: artifact, Fields: names, Detail: strings.Join(details, "; ")}
}

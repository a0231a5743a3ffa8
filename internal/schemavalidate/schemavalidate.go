// Package schemavalidate checks that a generated schema is itself a
// well-formed Draft-07 JSON Schema document (spec §4.6). This is
// meta-validation: it asks whether the candidate conforms to the
// draft-07 meta-schema, not whether some data instance conforms to the
// candidate.
package schemavalidate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Result is the outcome of validating a candidate schema against the
// draft-07 meta-schema.
type Result struct {
	Valid  bool
	Errors []string
}

// ValidateDraft07 rejects null, primitive, and array roots outright, then
// compiles the candidate against the draft-07 meta-schema in strict mode.
// Compilation failure is itself a validation failure; every leaf cause in
// the library's error tree is flattened into a human-readable string
// carrying the failing instance path.
func ValidateDraft07(parsed any) Result {
	root, ok := parsed.(map[string]any)
	if !ok {
		return Result{Valid: false, Errors: []string{"schema root must be a JSON object"}}
	}

	raw, err := json.Marshal(root)
	if err != nil {
		return Result{Valid: false, Errors: []string{fmt.Sprintf("schema is not serializable: %v", err)}}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Result{Valid: false, Errors: []string{fmt.Sprintf("schema is not valid JSON: %v", err)}}
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	compiler.AssertFormat()
	compiler.AssertContent()

	const resourceName = "candidate.json"
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return Result{Valid: false, Errors: []string{fmt.Sprintf("schema could not be registered: %v", err)}}
	}

	if _, err := compiler.Compile(resourceName); err != nil {
		return Result{Valid: false, Errors: flattenErrors(err)}
	}

	return Result{Valid: true}
}

// flattenErrors walks a jsonschema validation error tree and returns one
// "<path>: <message>" string per leaf cause, using reflection to read the
// library's InstanceLocation/Causes fields regardless of their exact
// underlying types (the location field is a path-like value, formatted
// with %v). Error shapes the walker doesn't recognize fall back to a
// single entry holding Error().
func flattenErrors(err error) []string {
	var out []string
	walkErrorTree(reflect.ValueOf(err), &out)
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

func walkErrorTree(asIs reflect.Value, out *[]string) {
	v := asIs
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	causes := v.FieldByName("Causes")
	if causes.IsValid() && causes.Kind() == reflect.Slice && causes.Len() > 0 {
		for i := 0; i < causes.Len(); i++ {
			walkErrorTree(causes.Index(i), out)
		}
		return
	}

	inner := v.FieldByName("Err")
	if inner.IsValid() && !inner.IsZero() {
		if innerErr, ok := inner.Interface().(error); ok {
			walkErrorTree(reflect.ValueOf(innerErr), out)
			return
		}
	}

	message := errorMessage(asIs, v)
	location := v.FieldByName("InstanceLocation")
	if location.IsValid() {
		*out = append(*out, fmt.Sprintf("%v: %s", location.Interface(), message))
		return
	}
	*out = append(*out, message)
}

// errorMessage prefers calling Error() on the original (possibly pointer)
// value, since these library types typically implement error on a
// pointer receiver; %v on the dereferenced struct would otherwise just
// dump its fields.
func errorMessage(original, dereferenced reflect.Value) string {
	if original.IsValid() && original.CanInterface() {
		if err, ok := original.Interface().(error); ok {
			return err.Error()
		}
	}
	return fmt.Sprintf("%v", dereferenced.Interface())
}

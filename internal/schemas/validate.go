// Package schemas validates report documents against the embedded JSON Schemas.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed candidate.schema.json
var candidateSchema string

//go:embed report.schema.json
var reportSchema string

var (
	candidateLoader = gojsonschema.NewStringLoader(candidateSchema)
	reportLoader    = gojsonschema.NewStringLoader(reportSchema)
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading the schema or the document
type SchemaLoadError struct {
	Schema string
	Cause  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to validate against %s schema: %v", e.Schema, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Kind names which document shape was detected.
type Kind string

const (
	KindCandidate Kind = "candidate"
	KindReport    Kind = "report"
)

// Detect tells a stored report from a bare candidate export.
func Detect(data []byte) (Kind, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return "", fmt.Errorf("document is not a JSON object: %w", err)
	}
	if _, ok := top["candidate"]; ok {
		return KindReport, nil
	}
	return KindCandidate, nil
}

// ValidateCandidate checks a JSON export of a normalized candidate.
func ValidateCandidate(data []byte) error {
	return validate("candidate", candidateLoader, gojsonschema.NewBytesLoader(data), "")
}

// ValidateReport checks a stored report, including its embedded candidate.
func ValidateReport(data []byte) error {
	if err := validate("report", reportLoader, gojsonschema.NewBytesLoader(data), ""); err != nil {
		return err
	}

	var doc struct {
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return &SchemaLoadError{Schema: "report", Cause: err}
	}
	return validate("candidate", candidateLoader, gojsonschema.NewBytesLoader(doc.Candidate), "candidate")
}

// Validate detects the document kind and validates it.
func Validate(data []byte) (Kind, error) {
	kind, err := Detect(data)
	if err != nil {
		return "", err
	}
	if kind == KindReport {
		return kind, ValidateReport(data)
	}
	return kind, ValidateCandidate(data)
}

func validate(name string, schema, document gojsonschema.JSONLoader, prefix string) error {
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return &SchemaLoadError{Schema: name, Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		switch {
		case prefix != "" && field == "(root)":
			field = prefix
		case prefix != "":
			field = prefix + "." + field
		case field == "":
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

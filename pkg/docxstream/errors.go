package docxstream

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNestedTable is returned when a table starts inside another table.
	// Row expansion and merge detection are only defined for flat tables.
	ErrNestedTable = errors.New("nested table")

	// ErrMissingDocument is returned when the package has no word/document.xml.
	ErrMissingDocument = errors.New("missing word/document.xml")

	// ErrNoRelationships is returned by Finalize when no relationship
	// document was ever provided.
	ErrNoRelationships = errors.New("no relationship document")

	// ErrMalformedRelationships is returned by Finalize when the relationship
	// document has no closing </Relationships> tag to splice before.
	ErrMalformedRelationships = errors.New("relationship document has no closing tag")
)

// Sniffer failures. They are wrapped in a *SniffError.
var (
	ErrTooShort          = errors.New("byte slice too short")
	ErrInvalidPNGHeader  = errors.New("invalid PNG IHDR chunk")
	ErrInvalidJPEGMarker = errors.New("invalid JPEG marker")
	ErrNoSOFMarker       = errors.New("no SOF marker found in JPEG")
	ErrUnknownFormat     = errors.New("unknown image format")
)

// TemplateError represents an error in the template structure
type TemplateError struct {
	Message string
	Offset  int64
	Cause   error
}

func (e *TemplateError) Error() string {
	var b strings.Builder
	b.WriteString("template error")
	if e.Offset > 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewTemplateError creates a new template error with position information
func NewTemplateError(message string, offset int64, cause error) error {
	return &TemplateError{
		Message: message,
		Offset:  offset,
		Cause:   cause,
	}
}

// DocumentError represents an error during package operations
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// ImageError reports a payload that looked like an image but could not be
// decoded.
type ImageError struct {
	Prefix string
	Cause  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("failed to convert base64 data to image (payload %q...): %v", e.Prefix, e.Cause)
}

func (e *ImageError) Unwrap() error {
	return e.Cause
}

// SniffError reports why pixel dimensions could not be read.
type SniffError struct {
	Format string
	Err    error
}

func (e *SniffError) Error() string {
	if e.Format == "" {
		return e.Err.Error()
	}
	return e.Format + ": " + e.Err.Error()
}

func (e *SniffError) Unwrap() error {
	return e.Err
}

// MultiError collects multiple errors
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Err returns the multi-error or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}

	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errors
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// IsTemplateError checks if an error is a template error
func IsTemplateError(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}

// IsDocumentError checks if an error is a document error
func IsDocumentError(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}

// IsImageError checks if an error is an image decoding error
func IsImageError(err error) bool {
	var ie *ImageError
	return errors.As(err, &ie)
}

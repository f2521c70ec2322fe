// Package errors provides standardized error types and helpers for the
// Quire codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or construct
	ErrUnsupported = errors.New("unsupported")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
)

// PackageErrorKind distinguishes the two fatal package failure classes.
type PackageErrorKind string

const (
	// NotPackage indicates the input is not a structured document package
	// at all (not a zip archive, or the main content part is absent).
	NotPackage PackageErrorKind = "not-package"
	// MalformedPackage indicates the package layout is present but a
	// required part failed to parse.
	MalformedPackage PackageErrorKind = "malformed-package"
)

// PackageError represents a fatal document-package failure.
type PackageError struct {
	Kind    PackageErrorKind // NotPackage or MalformedPackage
	Part    string           // Package part involved (e.g. "word/document.xml")
	Message string           // Human-readable error message
	Err     error            // Underlying error, if any
}

func (e *PackageError) Error() string {
	switch {
	case e.Kind == NotPackage && e.Part != "":
		return fmt.Sprintf("not a document package: missing %s: %s", e.Part, e.Message)
	case e.Kind == NotPackage:
		return fmt.Sprintf("not a document package: %s", e.Message)
	case e.Part != "":
		return fmt.Sprintf("malformed package part %s: %s", e.Part, e.Message)
	default:
		return fmt.Sprintf("malformed package: %s", e.Message)
	}
}

func (e *PackageError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IsNotPackage returns true if err is a PackageError of kind NotPackage.
func IsNotPackage(err error) bool {
	var pe *PackageError
	return errors.As(err, &pe) && pe.Kind == NotPackage
}

// IsMalformedPackage returns true if err is a PackageError of kind
// MalformedPackage.
func IsMalformedPackage(err error) bool {
	var pe *PackageError
	return errors.As(err, &pe) && pe.Kind == MalformedPackage
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g. "BibTeX", "XML", "frontmatter")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g. "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// FetchError represents a citation-style download failure. Fetch failures
// are always recoverable: callers fall back to unformatted rendering.
type FetchError struct {
	StyleID string // Style id or URL being fetched
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch style %s: %s", e.StyleID, e.Message)
}

func (e *FetchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Wrap wraps an error with a message, preserving the error chain.
// Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message, preserving the error chain.
// Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error types for the pci analysis engine
type ErrorType string

const (
	// Lookup errors
	ErrorTypeNotFound ErrorType = "not_found"

	// Request errors
	ErrorTypeInvalidParameter ErrorType = "invalid_parameter"

	// File errors
	ErrorTypeFile       ErrorType = "file"
	ErrorTypePermission ErrorType = "permission"

	// Scan errors
	ErrorTypeScan ErrorType = "scan"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// NotFoundError signals that a requested class, file, or filtered result
// set does not exist. Surfaced to callers as an explicit error so automated
// clients can branch on it instead of inspecting an empty payload.
type NotFoundError struct {
	Type        ErrorType
	Kind        string // "class", "classes", "file", "path"
	Name        string
	Detail      string
	Suggestions []string
	Timestamp   time.Time
}

// NewNotFoundError creates a new not-found error for the given subject
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{
		Type:      ErrorTypeNotFound,
		Kind:      kind,
		Name:      name,
		Timestamp: time.Now(),
	}
}

// WithDetail adds a human-readable explanation to the error
func (e *NotFoundError) WithDetail(detail string) *NotFoundError {
	e.Detail = detail
	return e
}

// WithSuggestions attaches "did you mean" candidates
func (e *NotFoundError) WithSuggestions(suggestions []string) *NotFoundError {
	e.Suggestions = suggestions
	return e
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if len(e.Suggestions) > 0 {
		msg += ". Did you mean: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

// InvalidParameterError represents a request rejected before any file I/O
type InvalidParameterError struct {
	Type      ErrorType
	Field     string
	Value     string
	Reason    string
	Timestamp time.Time
}

// NewInvalidParameterError creates a new invalid-parameter error
func NewInvalidParameterError(field, value, reason string) *InvalidParameterError {
	return &InvalidParameterError{
		Type:      ErrorTypeInvalidParameter,
		Field:     field,
		Value:     value,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *InvalidParameterError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid parameter %s (value %q): %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFile
	if isPermissionError(err) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied")
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ScanError represents a usage-scan failure that aborted before producing results
type ScanError struct {
	Type       ErrorType
	Target     string
	Root       string
	Underlying error
	Timestamp  time.Time
}

// NewScanError creates a new scan error
func NewScanError(target, root string, err error) *ScanError {
	return &ScanError{
		Type:       ErrorTypeScan,
		Target:     target,
		Root:       root,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ScanError) Error() string {
	return fmt.Sprintf("scan failed for %s under %s: %v", e.Target, e.Root, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Type       ErrorType
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Type:       ErrorTypeConfig,
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidParameter reports whether err is (or wraps) an InvalidParameterError
func IsInvalidParameter(err error) bool {
	var ip *InvalidParameterError
	return errors.As(err, &ip)
}

package reportio

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error values and error creation helpers for consistency
var (
	// ErrConfig indicates the configuration file is missing or unreadable
	ErrConfig = errors.New("reportio: configuration file not found")

	// ErrReportName indicates the report name cannot be used as a file-path fragment
	ErrReportName = errors.New("reportio: report name is not usable as a file name")

	// ErrDatasetName indicates a dataset name cannot be used as a file-path fragment
	ErrDatasetName = errors.New("reportio: dataset name is not usable as a file name")

	// ErrConnection indicates the connection retry budget was exhausted
	ErrConnection = errors.New("reportio: unable to connect to data source")

	// ErrUnknownSourceKind indicates a source kind absent from configuration
	ErrUnknownSourceKind = errors.New("reportio: unknown data source kind")

	// ErrEmptyReport indicates run was called with no queries registered
	ErrEmptyReport = errors.New("reportio: no queries registered")

	// ErrMemoryLimit indicates memory limit exceeded
	ErrMemoryLimit = errors.New("reportio: memory limit exceeded")

	// errBackupMarker is returned when the backup marker cannot be read
	errBackupMarker = errors.New("reportio: backup marker unreadable")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	Query     string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithQuery adds query context to the error
func (ec *ErrorContext) WithQuery(name string) *ErrorContext {
	ec.Query = name
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, fmt.Sprintf("reportio: %s failed", ec.Operation))

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}

	if ec.Query != "" {
		parts = append(parts, "query: "+ec.Query)
	}

	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return fmt.Errorf("%s", context)
}

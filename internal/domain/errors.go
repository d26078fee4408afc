// Package domain defines core types, interfaces, and errors for the
// workforce governance platform.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// DataUnavailableError indicates a gold table or catalog descriptor is
// missing or unreadable. Recovered per table: the batch continues and the
// table gets a null snapshot with a note.
type DataUnavailableError struct {
	TableName string
	Message   string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable for %s: %s", e.TableName, e.Message)
}

// SchemaMismatchError indicates the catalog descriptor disagrees with the
// actual table columns. Scoring proceeds on the column intersection.
type SchemaMismatchError struct {
	TableName      string
	MissingColumns []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for %s: descriptor columns absent from table: %v",
		e.TableName, e.MissingColumns)
}

// CycleError indicates a lineage edge insertion would create a cycle among
// derived_from/transforms edges. The graph is left unchanged.
type CycleError struct {
	FromID string
	ToID   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("lineage edge %s -> %s would create a cycle", e.FromID, e.ToID)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrDataUnavailable creates a DataUnavailableError for a table.
func ErrDataUnavailable(table, format string, args ...interface{}) *DataUnavailableError {
	return &DataUnavailableError{TableName: table, Message: fmt.Sprintf(format, args...)}
}

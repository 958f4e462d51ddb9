// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Sentinel errors for common conditions.
var (
	ErrBufferFull     = errors.New("buffer is full")
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrInvalidMessage = errors.New("invalid message")
	ErrWriterClosed   = errors.New("archive writer is closed")
	ErrConnectionLost = errors.New("connection lost")
	ErrCatalogEmpty   = errors.New("no tables found in destination database")
)

// Insert failure taxonomy. Every failure of an insert matches exactly one of these.
var (
	ErrTableNotFound         = errors.New("table not found")
	ErrMissingRequiredField  = errors.New("missing required field")
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrTransportFailure      = errors.New("transport failure")
)

// TableError reports a topic with no destination table in the cached catalog.
type TableError struct {
	Topic string
	Table string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s: table=%s topic=%s", ErrTableNotFound, e.Table, e.Topic)
}

func (e *TableError) Is(target error) bool {
	return target == ErrTableNotFound
}

// FieldError reports a column/value problem found while validating or encoding
// a record. Kind is one of ErrMissingRequiredField, ErrTypeMismatch or
// ErrUnsupportedConversion.
type FieldError struct {
	Kind     error
	Table    string
	Column   string
	Expected string
	Actual   string
	Position string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: table=%s column=%s", e.Kind, e.Table, e.Column)
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " expected=%s actual=%s", e.Expected, e.Actual)
	}
	if e.Position != "" {
		fmt.Fprintf(&b, " position=%s", e.Position)
	}
	return b.String()
}

func (e *FieldError) Is(target error) bool {
	return target == e.Kind
}

// SchemaError collects the violations found by a pre-flight validation.
type SchemaError struct {
	Table      string
	Position   string
	Violations []error
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("schema validation failed: table=%s position=%s: %s",
		e.Table, e.Position, strings.Join(msgs, "; "))
}

func (e *SchemaError) Unwrap() []error {
	return e.Violations
}

// TransportError reports a network or protocol failure talking to the destination.
type TransportError struct {
	Endpoint   string
	StatusCode int
	// Code is the server exception code, when the server sent one.
	Code    string
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: endpoint=%s status=%d code=%s: %s",
			ErrTransportFailure, e.Endpoint, e.StatusCode, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: endpoint=%s: %v", ErrTransportFailure, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s: endpoint=%s: %s", ErrTransportFailure, e.Endpoint, e.Message)
	}
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether resubmitting the whole batch may succeed.
func (e *TransportError) IsRetryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// ConversionError represents a message that could not be turned into a record.
type ConversionError struct {
	PartitionID event.PartitionID
	Offset      int64
	Format      string
	Err         error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: partition=%s offset=%d format=%s: %v",
		e.PartitionID, e.Offset, e.Format, e.Err)
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrInvalidMessage
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ProcessingError represents a failure to deliver a batch.
type ProcessingError struct {
	PartitionID event.PartitionID
	FirstOffset int64
	LastOffset  int64
	Table       string
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: partition=%s offsets=%d..%d table=%s: %v",
		e.PartitionID, e.FirstOffset, e.LastOffset, e.Table, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// StorageError represents an archive storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	PartitionID event.PartitionID
	Offset      int64
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Write and upload operations are generally retryable
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// Kind returns the taxonomy sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrTableNotFound,
		ErrMissingRequiredField,
		ErrTypeMismatch,
		ErrUnsupportedConversion,
		ErrTransportFailure,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

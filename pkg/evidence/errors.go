package evidence

import "fmt"

// ValidationError reports invalid caller input. It is surfaced to the
// caller immediately and never retried.
type ValidationError struct {
	Field   string // Field that failed validation
	Message string // Human-readable reason
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NotFoundError reports a missing pack, file, or retention record.
type NotFoundError struct {
	Kind string // What was looked up ("pack", "retention", "hold", etc.)
	ID   string // Identifier that was not found
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{
		Kind: kind,
		ID:   id,
	}
}

// AlreadyFinalizedError reports a recording call against a finalized
// accumulator. This is a caller contract violation, not a transient
// condition.
type AlreadyFinalizedError struct {
	ExecutionID string // Execution whose accumulator was finalized
	Operation   string // Operation that was rejected
}

// Error implements the error interface.
func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("accumulator already finalized [execution_id=%s, operation=%s]", e.ExecutionID, e.Operation)
}

// NewAlreadyFinalizedError creates a new AlreadyFinalizedError.
func NewAlreadyFinalizedError(executionID, operation string) *AlreadyFinalizedError {
	return &AlreadyFinalizedError{
		ExecutionID: executionID,
		Operation:   operation,
	}
}

// SigningError reports a signing or timestamping failure. Pack
// persistence continues unsigned when signing fails; the error is
// surfaced alongside the persisted path.
type SigningError struct {
	Operation string // Operation that failed ("sign", "timestamp", "load_key", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *SigningError) Error() string {
	return fmt.Sprintf("signing error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SigningError) Unwrap() error {
	return e.Cause
}

// NewSigningError creates a new SigningError.
func NewSigningError(operation string, cause error) *SigningError {
	return &SigningError{
		Operation: operation,
		Cause:     cause,
	}
}

// RetentionDeniedError reports a deletion blocked by retention rules.
// Reason is machine-readable: "legal_hold", "immutable", or
// "retention_active".
type RetentionDeniedError struct {
	PackID string // Pack the operation targeted
	Reason string // Machine-readable denial reason
}

// Error implements the error interface.
func (e *RetentionDeniedError) Error() string {
	return fmt.Sprintf("retention denied [pack_id=%s, reason=%s]", e.PackID, e.Reason)
}

// NewRetentionDeniedError creates a new RetentionDeniedError.
func NewRetentionDeniedError(packID, reason string) *RetentionDeniedError {
	return &RetentionDeniedError{
		PackID: packID,
		Reason: reason,
	}
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("local", "memory", "sqlite", etc.)
	Operation string // Operation that failed ("write", "delete", "set_immutable", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// DeliveryError reports a failed SIEM delivery attempt. Deliveries are
// retried with backoff and dead-lettered on exhaustion; this error is
// never raised to Send callers.
type DeliveryError struct {
	Backend  string // SIEM backend name
	EventID  string // Event that failed to deliver
	Attempts int    // Delivery attempts made
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error [backend=%s, event_id=%s, attempts=%d]: %v", e.Backend, e.EventID, e.Attempts, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// NewDeliveryError creates a new DeliveryError.
func NewDeliveryError(backend, eventID string, attempts int, cause error) *DeliveryError {
	return &DeliveryError{
		Backend:  backend,
		EventID:  eventID,
		Attempts: attempts,
		Cause:    cause,
	}
}

// Package errors provides the error taxonomy shared by every colony component,
// together with classification helpers used by the CLI to pick a message and
// an exit code.
//
// # Error Types
//
// Taxonomy errors describe why a coordination operation was rejected:
//   - DuplicateIDError: a record with the requested id already exists
//   - NotFoundError: the referenced task does not exist
//   - InvalidTransitionError: the event is not legal from the task's current status
//   - ConflictError: a concurrent writer won the compare-and-swap race
//   - InvalidDependencyError: a dependency is missing, incomplete, or would form a cycle
//   - UnauthorizedError: the task is assigned to a different agent
//   - ValidationError: a field is out of range or malformed
//
// The domain error StoreError wraps failures of the durable record store
// itself (I/O, corrupt records, database errors).
//
// # Usage
//
//	err := errors.NewInvalidTransitionError("T1", "pending", "completed")
//
//	var transition *errors.InvalidTransitionError
//	if errors.As(err, &transition) { ... }
//
//	if errors.Is(err, &errors.ConflictError{}) { ... }
//
//	fmt.Fprintf(os.Stderr, "error: %s: %v\n", errors.Kind(err), err)
//	os.Exit(errors.ExitCode(err))
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors caused by the caller's input or a lost race.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = New("invalid input")
	// ErrStoreCorrupted indicates a stored record could not be decoded.
	ErrStoreCorrupted = New("store record corrupted")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ColonyError is the base interface for all colony errors.
type ColonyError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func warning(message string) baseError {
	return baseError{
		message:    message,
		severity:   SeverityWarning,
		userFacing: true,
	}
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// StoreError represents a failure of the durable record store rather than a
// rejected operation.
//
// Example:
//
//	err := errors.NewStoreError("write record", ioErr).WithPath("/repo/.colony/tables/tasks/T1.json")
//	fmt.Println(err) // "store error [path=...]: write record: permission denied"
type StoreError struct {
	baseError
	Backend string
	Path    string
}

// NewStoreError creates a new StoreError. Store errors are retryable by
// default since most of them are transient (busy database, full disk).
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithBackend records which backend produced the error.
func (e *StoreError) WithBackend(backend string) *StoreError {
	e.Backend = backend
	return e
}

// WithPath records the file or database path involved.
func (e *StoreError) WithPath(path string) *StoreError {
	e.Path = path
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StoreError) WithRetryable(r bool) *StoreError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "store error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("store error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Taxonomy Errors
// -----------------------------------------------------------------------------

// DuplicateIDError reports that a record with the same id already exists.
type DuplicateIDError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewDuplicateIDError creates a new DuplicateIDError.
func NewDuplicateIDError(resourceType, resourceID string) *DuplicateIDError {
	return &DuplicateIDError{
		baseError:    warning(fmt.Sprintf("%s '%s' already exists", resourceType, resourceID)),
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *DuplicateIDError) Is(target error) bool {
	if _, ok := target.(*DuplicateIDError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("task", "T1")
//	fmt.Println(err) // "task 'T1' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError:    warning(fmt.Sprintf("%s '%s' not found", resourceType, resourceID)),
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InvalidTransitionError reports an event that the task state machine does
// not allow from the task's current status.
//
// Example:
//
//	err := errors.NewInvalidTransitionError("T1", "pending", "completed")
//	fmt.Println(err) // "task 'T1': cannot transition from pending to completed"
type InvalidTransitionError struct {
	baseError
	TaskID string
	From   string
	To     string
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(taskID, from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{
		baseError: warning(fmt.Sprintf("cannot transition from %s to %s", from, to)),
		TaskID:    taskID,
		From:      from,
		To:        to,
	}
}

// Error returns the formatted error message.
func (e *InvalidTransitionError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("task '%s': cannot transition from %s to %s", e.TaskID, e.From, e.To)
}

// Is checks if this error matches the target.
func (e *InvalidTransitionError) Is(target error) bool {
	if _, ok := target.(*InvalidTransitionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConflictError reports that another writer changed the record between our
// read and our compare-and-swap, or that the task is already owned.
type ConflictError struct {
	baseError
	TaskID   string
	Owner    string
	Attempts int
}

// NewConflictError creates a new ConflictError.
func NewConflictError(taskID, reason string) *ConflictError {
	return &ConflictError{
		baseError: warning(reason),
		TaskID:    taskID,
	}
}

// WithOwner records the agent that currently holds the task.
func (e *ConflictError) WithOwner(agent string) *ConflictError {
	e.Owner = agent
	return e
}

// WithAttempts records how many compare-and-swap attempts were made.
func (e *ConflictError) WithAttempts(n int) *ConflictError {
	e.Attempts = n
	return e
}

// Error returns the formatted error message.
func (e *ConflictError) Error() string {
	var parts []string
	if e.Owner != "" {
		parts = append(parts, fmt.Sprintf("owner=%s", e.Owner))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}

	msg := fmt.Sprintf("task '%s': %s", e.TaskID, e.message)
	if len(parts) > 0 {
		msg = fmt.Sprintf("%s [%s]", msg, strings.Join(parts, ", "))
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ConflictError) Is(target error) bool {
	if _, ok := target.(*ConflictError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InvalidDependencyError reports a dependency that is missing, not yet
// completed, or that would introduce a cycle.
type InvalidDependencyError struct {
	baseError
	TaskID     string
	Dependency string
	// Cycle holds the offending path, starting and ending at TaskID,
	// when the error was caused by cycle detection.
	Cycle []string
}

// NewInvalidDependencyError creates a new InvalidDependencyError.
func NewInvalidDependencyError(taskID, dependency, reason string) *InvalidDependencyError {
	return &InvalidDependencyError{
		baseError:  warning(reason),
		TaskID:     taskID,
		Dependency: dependency,
	}
}

// NewDependencyCycleError creates an InvalidDependencyError for a cycle.
func NewDependencyCycleError(taskID string, cycle []string) *InvalidDependencyError {
	return &InvalidDependencyError{
		baseError: warning("dependency cycle " + strings.Join(cycle, " -> ")),
		TaskID:    taskID,
		Cycle:     cycle,
	}
}

// Error returns the formatted error message.
func (e *InvalidDependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("task '%s': %s", e.TaskID, e.message)
	}
	return fmt.Sprintf("task '%s': dependency '%s' %s", e.TaskID, e.Dependency, e.message)
}

// Is checks if this error matches the target.
func (e *InvalidDependencyError) Is(target error) bool {
	if _, ok := target.(*InvalidDependencyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// UnauthorizedError reports that an agent tried to claim a task assigned to
// somebody else.
type UnauthorizedError struct {
	baseError
	TaskID     string
	Agent      string
	AssignedTo string
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(taskID, agent, assignedTo string) *UnauthorizedError {
	return &UnauthorizedError{
		baseError:  warning("assigned to another agent"),
		TaskID:     taskID,
		Agent:      agent,
		AssignedTo: assignedTo,
	}
}

// Error returns the formatted error message.
func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("task '%s' is assigned to '%s', not '%s'", e.TaskID, e.AssignedTo, e.Agent)
}

// Is checks if this error matches the target.
func (e *UnauthorizedError) Is(target error) bool {
	if _, ok := target.(*UnauthorizedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("progress must be between 0 and 100")
//	err = err.WithField("progress").WithValue(150)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: warning(message),
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Taxonomy kinds as printed by the CLI.
const (
	KindDuplicateID       = "DuplicateId"
	KindNotFound          = "NotFound"
	KindInvalidTransition = "InvalidTransition"
	KindConflict          = "Conflict"
	KindInvalidDependency = "InvalidDependency"
	KindUnauthorized      = "Unauthorized"
	KindValidation        = "ValidationError"
	KindStore             = "StoreError"
	KindInternal          = "Error"
)

// Kind returns the taxonomy name of err, or KindInternal when err is not
// one of the colony error types.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		duplicate  *DuplicateIDError
		notFound   *NotFoundError
		transition *InvalidTransitionError
		conflict   *ConflictError
		dependency *InvalidDependencyError
		auth       *UnauthorizedError
		validation *ValidationError
		store      *StoreError
	)

	switch {
	case As(err, &duplicate):
		return KindDuplicateID
	case As(err, &notFound):
		return KindNotFound
	case As(err, &transition):
		return KindInvalidTransition
	case As(err, &conflict):
		return KindConflict
	case As(err, &dependency):
		return KindInvalidDependency
	case As(err, &auth):
		return KindUnauthorized
	case As(err, &validation):
		return KindValidation
	case As(err, &store):
		return KindStore
	default:
		return KindInternal
	}
}

// ExitCode maps err to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch Kind(err) {
	case "":
		return 0
	case KindValidation:
		return 2
	case KindNotFound:
		return 3
	case KindConflict:
		return 4
	case KindInvalidTransition:
		return 5
	case KindInvalidDependency:
		return 6
	case KindUnauthorized:
		return 7
	case KindDuplicateID:
		return 8
	default:
		return 1
	}
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var colonyErr ColonyError
	if As(err, &colonyErr) {
		return colonyErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var colonyErr ColonyError
	if As(err, &colonyErr) {
		return colonyErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ColonyError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var colonyErr ColonyError
	if As(err, &colonyErr) {
		return colonyErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike building a new error, this preserves the ColonyError chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

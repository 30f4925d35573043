package sqlstage

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common failure classes. Typed errors below
// match these through errors.Is.
var (
	// ErrAlreadyInitialized is returned when Init is called twice for the
	// same entity kind.
	ErrAlreadyInitialized = errors.New("sqlstage: registry already initialized")

	// ErrNotInitialized is returned when a registry is used before Init.
	ErrNotInitialized = errors.New("sqlstage: registry not initialized")
)

// ConnectError reports a failure to open or verify a database connection.
type ConnectError struct {
	dialect string
	cause   error
}

// Error returns the error string.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("sqlstage: connect %s: %v", e.dialect, e.cause)
}

// Unwrap returns the underlying driver error.
func (e *ConnectError) Unwrap() error { return e.cause }

// Dialect returns the dialect the connection was opened with.
func (e *ConnectError) Dialect() string { return e.dialect }

func newConnectError(dialect string, cause error) *ConnectError {
	return &ConnectError{dialect: dialect, cause: cause}
}

// IsConnect returns true if the error is a ConnectError.
func IsConnect(err error) bool {
	var e *ConnectError
	return errors.As(err, &e)
}

// PrepareError reports a failure to compile a parameterized query into a
// prepared template.
type PrepareError struct {
	query string
	cause error
}

// Error returns the error string.
func (e *PrepareError) Error() string {
	return fmt.Sprintf("sqlstage: prepare %q: %v", e.query, e.cause)
}

// Unwrap returns the underlying driver error.
func (e *PrepareError) Unwrap() error { return e.cause }

// Query returns the query that failed to prepare.
func (e *PrepareError) Query() string { return e.query }

func newPrepareError(query string, cause error) *PrepareError {
	return &PrepareError{query: query, cause: cause}
}

// IsPrepare returns true if the error is a PrepareError.
func IsPrepare(err error) bool {
	var e *PrepareError
	return errors.As(err, &e)
}

// DispatchError reports a failure to resolve a record's pending action into
// a queued statement.
type DispatchError struct {
	kind   string
	action Action
	cause  error
}

// Error returns the error string.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("sqlstage: dispatch %s %s: %v", e.kind, e.action, e.cause)
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error { return e.cause }

// Kind returns the entity kind whose dispatch failed.
func (e *DispatchError) Kind() string { return e.kind }

// Action returns the pending action that was being dispatched.
func (e *DispatchError) Action() Action { return e.action }

func newDispatchError(kind string, action Action, cause error) *DispatchError {
	return &DispatchError{kind: kind, action: action, cause: cause}
}

// IsDispatch returns true if the error is a DispatchError.
func IsDispatch(err error) bool {
	var e *DispatchError
	return errors.As(err, &e)
}

// TransactionError reports a failure while executing the queued statements
// of a commit, or while committing or rolling back the transaction.
type TransactionError struct {
	query string // failing statement, empty for begin/commit failures
	cause error
}

// Error returns the error string.
func (e *TransactionError) Error() string {
	if e.query == "" {
		return fmt.Sprintf("sqlstage: transaction: %v", e.cause)
	}
	return fmt.Sprintf("sqlstage: transaction: statement %q: %v", e.query, e.cause)
}

// Unwrap returns the underlying driver error.
func (e *TransactionError) Unwrap() error { return e.cause }

// Query returns the failing statement, or "" if the failure was not tied to
// a single statement (begin or commit).
func (e *TransactionError) Query() string { return e.query }

func newTransactionError(query string, cause error) *TransactionError {
	return &TransactionError{query: query, cause: cause}
}

// IsTransaction returns true if the error is a TransactionError.
func IsTransaction(err error) bool {
	var e *TransactionError
	return errors.As(err, &e)
}

// QueryError reports a failure of an immediate read issued outside the
// statement queue.
type QueryError struct {
	query string
	cause error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("sqlstage: query %q: %v", e.query, e.cause)
}

// Unwrap returns the underlying driver error.
func (e *QueryError) Unwrap() error { return e.cause }

// Query returns the query that failed.
func (e *QueryError) Query() string { return e.query }

func newQueryError(query string, cause error) *QueryError {
	return &QueryError{query: query, cause: cause}
}

// IsQuery returns true if the error is a QueryError.
func IsQuery(err error) bool {
	var e *QueryError
	return errors.As(err, &e)
}

// AlreadyInitializedError reports a second Init for an entity kind.
type AlreadyInitializedError struct {
	kind string
}

// Error returns the error string.
func (e *AlreadyInitializedError) Error() string {
	return fmt.Sprintf("sqlstage: registry for %q already initialized", e.kind)
}

// Is reports whether the target matches ErrAlreadyInitialized.
func (e *AlreadyInitializedError) Is(err error) bool {
	return err == ErrAlreadyInitialized
}

// Kind returns the entity kind.
func (e *AlreadyInitializedError) Kind() string { return e.kind }

// IsAlreadyInitialized returns true if the error is an AlreadyInitializedError.
func IsAlreadyInitialized(err error) bool {
	if err == nil {
		return false
	}
	var e *AlreadyInitializedError
	return errors.As(err, &e) || errors.Is(err, ErrAlreadyInitialized)
}

// NotInitializedError reports use of a registry kind before Init.
type NotInitializedError struct {
	kind string
}

// Error returns the error string.
func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("sqlstage: registry for %q not initialized", e.kind)
}

// Is reports whether the target matches ErrNotInitialized.
func (e *NotInitializedError) Is(err error) bool {
	return err == ErrNotInitialized
}

// Kind returns the entity kind.
func (e *NotInitializedError) Kind() string { return e.kind }

// IsNotInitialized returns true if the error is a NotInitializedError.
func IsNotInitialized(err error) bool {
	if err == nil {
		return false
	}
	var e *NotInitializedError
	return errors.As(err, &e) || errors.Is(err, ErrNotInitialized)
}

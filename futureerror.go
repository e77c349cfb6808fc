package eventloop

// Error types for the typed future family ([Future], [PackagedTask],
// [WhenAll], [WhenAny]). These follow the same shape as the package's
// JavaScript-compatible error types ([TypeError], [RangeError], etc.):
// a struct with Message and optional Cause, matched via [errors.As].

// BrokenPromiseError is stored in an operation state when its producer is
// destroyed without setting a value or an error. Consumers observe it from
// [Future.Get].
type BrokenPromiseError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *BrokenPromiseError) Error() string {
	if e.Message == "" {
		return "future: broken promise"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *BrokenPromiseError) Unwrap() error {
	return e.Cause
}

// AlreadySatisfiedError is returned by a second SetValue or SetError on the
// same operation state.
type AlreadySatisfiedError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AlreadySatisfiedError) Error() string {
	if e.Message == "" {
		return "future: state already satisfied"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *AlreadySatisfiedError) Unwrap() error {
	return e.Cause
}

// FutureUninitialisedError is returned by Get, Wait, or RequestStop on an
// invalid (default-constructed, moved-from, or consumed) future.
type FutureUninitialisedError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *FutureUninitialisedError) Error() string {
	if e.Message == "" {
		return "future: uninitialised"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *FutureUninitialisedError) Unwrap() error {
	return e.Cause
}

// NoStateError is returned by Then on an invalid future.
type NoStateError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *NoStateError) Error() string {
	if e.Message == "" {
		return "future: no associated state"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *NoStateError) Unwrap() error {
	return e.Cause
}

// AlreadyRetrievedError is returned by a second Future call on the same
// [PackagedTask].
type AlreadyRetrievedError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AlreadyRetrievedError) Error() string {
	if e.Message == "" {
		return "future: already retrieved"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *AlreadyRetrievedError) Unwrap() error {
	return e.Cause
}

// InvalidStateForOperationError is returned when an operation is not defined
// for the future's current representation: requesting a stop source from a
// plain ready value, cloning a single-owner handle, or promoting a state
// that is mid-wait.
type InvalidStateForOperationError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *InvalidStateForOperationError) Error() string {
	if e.Message == "" {
		return "future: operation invalid for current state"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *InvalidStateForOperationError) Unwrap() error {
	return e.Cause
}

// TaskExceptionError is stored when a task raises rather than returns: its
// Cause is the [PanicError] wrapping the recovered panic value. An error a
// task returns normally is stored as-is — in Go that is an ordinary value,
// not an exception.
type TaskExceptionError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TaskExceptionError) Error() string {
	if e.Message == "" {
		if e.Cause != nil {
			return "future: task raised: " + e.Cause.Error()
		}
		return "future: task raised"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TaskExceptionError) Unwrap() error {
	return e.Cause
}

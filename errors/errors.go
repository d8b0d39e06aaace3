package errors

import (
	"errors"
	"fmt"
)

// ErrorClass buckets errors by how callers should react to them.
type ErrorClass int

const (
	// ErrorTransient marks errors worth retrying: the operation may
	// succeed once a connection comes back or a timeout clears.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid marks errors caused by the input itself. Retrying
	// the same payload cannot succeed.
	ErrorInvalid
	// ErrorFatal marks errors the component cannot recover from.
	ErrorFatal
)

// String returns the lowercase class name.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors callers branch on with errors.Is.
var (
	// Connection state, returned by the transport dialers.
	ErrNoConnection      = errors.New("no connection available")
	ErrNotConnected      = errors.New("server not connected")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Event handling, returned by the CoT codec and the components
	// that consume decoded events.
	ErrInvalidEvent  = errors.New("invalid event")
	ErrParsingFailed = errors.New("parsing failed")

	// Roster operations on the federation manager.
	ErrServerNotFound = errors.New("server not found")
	ErrServerExists   = errors.New("server already registered")
)

// ClassifiedError carries an error together with its class and the
// component and operation that produced it.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Wrap adds component context to an error in the form
// "component.method: action failed: %w". Classification of the wrapped
// error is preserved through the chain.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error with context and marks it retryable.
func WrapTransient(err error, component, method, action string) error {
	return wrapClass(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps an error with context and marks it as a bad-input
// failure that must not be retried.
func WrapInvalid(err error, component, method, action string) error {
	return wrapClass(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps an error with context and marks it unrecoverable.
func WrapFatal(err error, component, method, action string) error {
	return wrapClass(ErrorFatal, err, component, method, action)
}

func wrapClass(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

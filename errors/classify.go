package errors

import (
	"context"
	"errors"
	"strings"
)

// Message patterns for errors that arrive unclassified, typically from
// the net package or the NATS client.
var (
	transientPatterns = []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
		"retry",
	}

	fatalPatterns = []string{
		"fatal",
		"panic",
		"corrupted",
		"invalid config",
		"missing config",
		"out of memory",
		"disk full",
	}
)

// IsTransient reports whether an error is worth retrying. An explicit
// classification wins; unclassified errors fall back to the connection
// sentinels, context errors, and message patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorTransient
	}

	switch {
	case errors.Is(err, ErrNoConnection),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrConnectionTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	}
	return matchesAny(err, transientPatterns)
}

// IsFatal reports whether an error should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorFatal
	}
	return matchesAny(err, fatalPatterns)
}

// IsInvalid reports whether an error was caused by the input itself,
// so the same payload must not be retried.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorInvalid
	}
	return errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrParsingFailed)
}

// Classify funnels an error into a single class. Transient wins over
// fatal, fatal over invalid, and anything unrecognized comes back
// transient so callers err on the side of retrying.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorTransient
	case IsTransient(err):
		return ErrorTransient
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

func classOf(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

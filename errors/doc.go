// Package errors classifies failures across takcore so callers can
// decide between retrying, dropping a payload, and shutting down.
//
// # Classification
//
// Every error falls into one of three classes:
//
//   - Transient: timeouts, lost connections, temporary unavailability.
//     Retry the operation.
//   - Invalid: the payload or configuration itself is bad. Retrying
//     the same input cannot succeed; drop it.
//   - Fatal: the component cannot recover. Stop processing.
//
// Producers attach the class at the point of failure:
//
//	if err := conn.Send(payload); err != nil {
//	    return errors.WrapTransient(err, "transport", "Send", "write frame")
//	}
//
// Consumers branch on it without knowing the producer:
//
//	if errors.IsTransient(err) {
//	    // reconnect and try again
//	}
//
// Errors that arrive unclassified, typically from the net package or
// the NATS client, are classified by sentinel and message-pattern
// fallbacks; anything unrecognized counts as transient so callers err
// on the side of retrying.
//
// # Wrapping
//
// All wrapping follows one format:
//
//	"component.method: action failed: %w"
//
// WrapTransient, WrapInvalid, and WrapFatal apply the format and attach
// a class. The plain Wrap adds context only, preserving whatever class
// the chain already carries:
//
//	wrapped := errors.Wrap(errors.ErrConnectionTimeout, "federation", "Connect", "dial")
//	errors.IsTransient(wrapped) // true, via the sentinel underneath
//
// # Sentinels
//
// The exported Err variables cover conditions callers branch on with
// errors.Is: connection state (ErrNoConnection, ErrNotConnected,
// ErrConnectionTimeout), event handling (ErrInvalidEvent,
// ErrParsingFailed), and roster operations (ErrServerNotFound,
// ErrServerExists).
//
// # Integration
//
// ClassifiedError supports errors.As for callers that need the
// component and operation fields:
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    logger.Warn("operation failed", "component", ce.Component, "class", ce.Class.String())
//	}
//
// Context errors (context.DeadlineExceeded, context.Canceled) classify
// as transient. The cot codec layers its own typed ParseError on top of
// this package; ParseError values still answer IsInvalid through the
// ErrParsingFailed sentinel.
package errors

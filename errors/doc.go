// Package errors provides the failure taxonomy and error classification for
// the traitstore client layer.
//
// # Outcome taxonomy
//
// Operations sent through the subscription manager end in exactly one
// terminal outcome. Two failure kinds reach callers:
//
//   - TransportError: the transport delivered an explicit Error status.
//     Matches ErrTransport.
//   - DecodeError: result bytes could not be parsed. Matches ErrDecode.
//
// Callers cannot act differently on either, so both put a handle into the
// Error state. Cancelling a handle that is already terminal is not an error:
// Cancel simply reports false.
//
// The layer never retries. Classification exists so callers can decide:
//
//	res, err := pending.Wait(ctx)
//	if errors.IsTransient(err) {
//	    // caller-owned retry policy
//	}
//
// # Wrapping pattern
//
// Errors raised inside the module follow the format
//
//	"component.method: action failed: %w"
//
// through Wrap, WrapTransient, WrapInvalid, and WrapFatal. The classified
// variants attach an ErrorClass that Classify and the Is* helpers honour
// ahead of sentinel matching.
package errors

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors a caller may choose to retry
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors
	ErrorFatal
)

// String returns the string representation of ErrorClass
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

// Operation outcome errors. Every one of these is terminal for the handle
// that produced it and is reported exactly once.
var (
	// ErrTransport is reported when the transport delivers an explicit failure status.
	ErrTransport = errors.New("transport reported failure")
	// ErrDecode is reported when result bytes cannot be parsed.
	ErrDecode = errors.New("result decode failed")
	// ErrCancelled resolves one-shot operations abandoned by Manager.Close.
	ErrCancelled = errors.New("operation cancelled")
	// ErrManagerClosed is returned when sending through a closed manager.
	ErrManagerClosed = errors.New("subscription manager closed")
)

// Entity model errors
var (
	ErrTraitNotFound = errors.New("trait not found")
	ErrNoTraits      = errors.New("entity has no traits")
	ErrNoRenameRule  = errors.New("trait type has no rename rule")
	ErrNoMutator     = errors.New("entity model has no mutator")
	ErrEntityMissing = errors.New("entity not found")
)

// Connection and configuration errors
var (
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrMissingConfig     = errors.New("missing required configuration")
	ErrInvalidData       = errors.New("invalid data format")
)

// TransportError carries the detail bytes a transport attached to an explicit
// Error status. It matches ErrTransport with errors.Is.
type TransportError struct {
	Op     string
	Detail []byte
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if len(e.Detail) == 0 {
		return fmt.Sprintf("%s: %v", e.Op, ErrTransport)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrTransport, e.Detail)
}

// Is reports whether target is ErrTransport
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// DecodeError wraps the codec failure for result bytes. It matches ErrDecode
// with errors.Is and unwraps to the codec error.
type DecodeError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrDecode, e.Err)
}

// Is reports whether target is ErrDecode
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Unwrap returns the codec error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsDecode reports whether err is a result decode failure
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrNoRenameRule)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	// Explicit classification wins over sentinel matching
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	return ErrorTransient
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	err := error(&TransportError{Op: "query", Detail: []byte("engine rejected predicate")})

	if !errors.Is(err, ErrTransport) {
		t.Fatal("expected TransportError to match ErrTransport")
	}
	if errors.Is(err, ErrDecode) {
		t.Error("TransportError must not match ErrDecode")
	}
	if !strings.Contains(err.Error(), "engine rejected predicate") {
		t.Errorf("expected detail in message, got %q", err.Error())
	}

	bare := &TransportError{Op: "mutate"}
	if bare.Error() != "mutate: transport reported failure" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestDecodeError(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := error(&DecodeError{Op: "watch", Err: cause})

	if !IsDecode(err) {
		t.Fatal("expected DecodeError to match ErrDecode")
	}
	if IsTransport(err) {
		t.Error("DecodeError must not match ErrTransport")
	}
	if !errors.Is(err, cause) {
		t.Error("DecodeError should unwrap to the codec error")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsDecode(wrapped) {
		t.Error("wrapped DecodeError should still match")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"transport failure", &TransportError{Op: "query"}, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"decode failure", &DecodeError{Op: "query", Err: fmt.Errorf("bad")}, false},
		{"no rename rule", ErrNoRenameRule, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid data", ErrInvalidData, true},
		{"decode failure", &DecodeError{Op: "mutate", Err: fmt.Errorf("bad")}, true},
		{"no rename rule", ErrNoRenameRule, true},
		{"transport failure", &TransportError{Op: "mutate"}, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults to transient", nil, ErrorTransient},
		{"transport failure", &TransportError{Op: "query"}, ErrorTransient},
		{"decode failure", &DecodeError{Op: "query", Err: fmt.Errorf("bad")}, ErrorInvalid},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"wrapped invalid wins", WrapInvalid(fmt.Errorf("timeout"), "Config", "Validate", "check"), ErrorInvalid},
		{"unknown error", fmt.Errorf("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "Manager", "Query", "encode") != nil {
		t.Error("wrapping nil should return nil")
	}

	base := ErrInvalidData
	err := Wrap(base, "Manager", "Query", "encode request")
	expected := "Manager.Query: encode request failed: invalid data format"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should match the base error")
	}
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.wrap(nil, "c", "m", "a") != nil {
				t.Fatal("wrapping nil should return nil")
			}

			err := test.wrap(ErrNoConnection, "Transport", "Mutate", "publish")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != test.class {
				t.Errorf("expected class %v, got %v", test.class, ce.Class)
			}
			if ce.Component != "Transport" || ce.Operation != "Mutate" {
				t.Errorf("unexpected context %s.%s", ce.Component, ce.Operation)
			}
			if !errors.Is(err, ErrNoConnection) {
				t.Error("classified error should unwrap to the base error")
			}
		})
	}
}

func TestClassifiedError_NoMessage(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("inner")}
	if ce.Error() != "inner" {
		t.Errorf("expected inner message, got %q", ce.Error())
	}
}

func BenchmarkClassify(b *testing.B) {
	err := Wrap(&TransportError{Op: "query"}, "Manager", "Query", "deliver")
	for i := 0; i < b.N; i++ {
		_ = Classify(err)
	}
}

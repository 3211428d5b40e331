package avr

import "errors"

// Domain errors for the AVR bridge package.
var (
	// ErrNotConnected is returned when a command needs a live telnet session.
	ErrNotConnected = errors.New("avr: not connected to receiver")

	// ErrUnmappedState is returned when a host state change has no binding
	// or its binding has no wire encoding.
	ErrUnmappedState = errors.New("avr: unmapped state")

	// ErrInvalidValue is returned when a host value cannot be converted to
	// the binding's wire argument.
	ErrInvalidValue = errors.New("avr: invalid value")

	// ErrMalformedLevel is returned for a wire level token that is not two
	// or three digits.
	ErrMalformedLevel = errors.New("avr: malformed level")

	// ErrInvalidChannel is returned for an amplifier channel outside 1..98.
	ErrInvalidChannel = errors.New("avr: invalid channel")

	// ErrIdleTimeout is returned when the receiver sends nothing within the
	// idle window.
	ErrIdleTimeout = errors.New("avr: idle timeout")

	// ErrClosed is returned by operations on a stopped connection.
	ErrClosed = errors.New("avr: connection closed")
)

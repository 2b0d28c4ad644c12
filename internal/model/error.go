package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors by how the operator recovers from them.
type ErrorKind string

const (
	// KindInput covers malformed hex, payloads and derivation syntax.
	KindInput ErrorKind = "input"
	// KindTrust covers bad signatures and verifier conflicts.
	KindTrust ErrorKind = "trust"
	// KindDecode covers type and metadata mismatches while decoding.
	KindDecode ErrorKind = "decode"
	// KindDatabase covers store I/O, corruption and checksum mismatch.
	KindDatabase ErrorKind = "database"
	// KindWrongPassword is a recoverable password mismatch.
	KindWrongPassword ErrorKind = "wrong_password"
)

var (
	ErrNotFound          = errors.New("not found in database")
	ErrChecksumMismatch  = errors.New("checksum mismatch: database changed since the action was prepared, decode the payload again")
	ErrNoPendingAction   = errors.New("no pending action in database")
	ErrAlreadyInDatabase = errors.New("already in database")
)

// Error is an operator-facing error with a classification.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// InputError reports malformed operator or payload input.
func InputError(format string, args ...any) *Error {
	return NewError(KindInput, nil, format, args...)
}

// TrustError reports a rejected verifier or signature.
func TrustError(format string, args ...any) *Error {
	return NewError(KindTrust, nil, format, args...)
}

// DecodeError reports a metadata/type mismatch while decoding.
func DecodeError(err error, format string, args ...any) *Error {
	return NewError(KindDecode, err, format, args...)
}

// DatabaseError wraps a store failure.
func DatabaseError(err error, format string, args ...any) *Error {
	return NewError(KindDatabase, err, format, args...)
}

// WrongPasswordError is returned when the re-derived public key does not
// match the stored one. The failed attempt is written to the audit log, which
// changes the store, so Checksum carries the token for the next attempt.
type WrongPasswordError struct {
	Checksum H256
	Counter  int
}

func (e *WrongPasswordError) Error() string {
	return "wrong password"
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	if kind == KindWrongPassword {
		var wp *WrongPasswordError
		return errors.As(err, &wp)
	}
	if kind == KindDatabase && errors.Is(err, ErrChecksumMismatch) {
		return true
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsWrongPasswordError checks if err is a WrongPasswordError.
func IsWrongPasswordError(err error) bool {
	return IsKind(err, KindWrongPassword)
}

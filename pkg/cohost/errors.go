package cohost

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the client unwraps to exactly one of these.
var (
	// ErrInvalidArgument indicates an empty or malformed input caught before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a referenced cookie file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransport indicates a connection, DNS, TLS, timeout or non-2xx failure.
	ErrTransport = errors.New("couldn't reach cohost")

	// ErrProtocol indicates a response that could not be parsed or lacked an expected field.
	ErrProtocol = errors.New("unexpected response from cohost")

	// ErrCrypto indicates a key derivation or encoding failure.
	ErrCrypto = errors.New("key derivation failed")

	// ErrBadCredentials indicates the server answered but reports no logged-in user.
	ErrBadCredentials = errors.New("bad login credentials")

	// ErrNotLoggedIn indicates the session was read before a successful login.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Stage identifies a step of the login handshake.
type Stage string

const (
	StageUnauthenticated      Stage = "unauthenticated"
	StageSaltFetched          Stage = "salt_fetched"
	StageKeyDerived           Stage = "key_derived"
	StageCredentialsSubmitted Stage = "credentials_submitted"
	StageAuthenticated        Stage = "authenticated"
)

// Error describes a failed client operation.
type Error struct {
	// Op is the public operation, e.g. "login" or "notifications".
	Op string
	// Stage is the last handshake stage reached before the failure, empty
	// outside the handshake.
	Stage Stage
	// Kind is one of the Err* sentinels.
	Kind error
	// Err is the underlying cause, may be nil.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Stage != "" {
		msg += " (after " + string(e.Stage) + ")"
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, stage Stage, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func wrapError(op string, stage Stage, kind, err error) *Error {
	return &Error{Op: op, Stage: stage, Kind: kind, Err: err}
}

// KindOf returns the kind sentinel of err, or nil if err did not come from this package.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// StageOf returns the handshake stage recorded on err.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// IsInvalidArgument checks if an error is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransport checks if an error is a transport error.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsProtocol checks if an error is a protocol error.
func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// IsCrypto checks if an error is a key derivation error.
func IsCrypto(err error) bool {
	return errors.Is(err, ErrCrypto)
}

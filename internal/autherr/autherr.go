// Package autherr defines the error taxonomy shared by the credential store,
// the GitHub client, the device flow engine and the auth service.
//
// Callers branch on Kind (or on the exported sentinels via errors.Is) rather
// than on error strings.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how a caller is expected to react to it.
type Kind string

const (
	// KindInput means a caller-supplied argument was rejected before any network call.
	KindInput Kind = "input"
	// KindNotConnected means no credential is stored.
	KindNotConnected Kind = "not_connected"
	// KindUnauthorized means the provider answered 401 for the credential.
	KindUnauthorized Kind = "unauthorized"
	// KindTransport covers network failures and unexpected HTTP statuses.
	KindTransport Kind = "transport"
	// KindMalformed means the provider answered with a body we could not use.
	KindMalformed Kind = "malformed"
	// KindStorage means persisting the credential failed.
	KindStorage Kind = "storage"
)

var (
	// ErrUnauthorized matches any error of KindUnauthorized.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotConnected is returned when an operation requires a stored credential.
	ErrNotConnected = &Error{Kind: KindNotConnected, Err: errors.New("github not connected")}
	// ErrTokenRevoked is returned by whoami when the stored credential got a 401.
	ErrTokenRevoked = &Error{Kind: KindUnauthorized, Err: errors.New("github token expired or revoked")}
	// ErrTokenRejected marks a freshly issued token that the API refused.
	ErrTokenRejected = errors.New("token invalid immediately after issuance")
)

// Error is the concrete error type carrying a Kind.
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "github /user".
	Op string
	// StatusCode is the HTTP status when the error came from a response.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
		if msg != "" {
			msg += " failed: " + status
		} else {
			msg = status
		}
	}
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrUnauthorized for every unauthorized error and otherwise
// compares sentinel identity.
func (e *Error) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.Kind == KindUnauthorized
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Input builds a KindInput error.
func Input(format string, args ...any) error {
	return &Error{Kind: KindInput, Err: fmt.Errorf(format, args...)}
}

// Status builds a KindTransport error for an unexpected HTTP status.
func Status(op string, code int) error {
	if code == http.StatusUnauthorized {
		return &Error{Kind: KindUnauthorized, Op: op, StatusCode: code}
	}
	return &Error{Kind: KindTransport, Op: op, StatusCode: code}
}

// Transport wraps a network level failure.
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Malformed wraps an unusable response body.
func Malformed(op string, err error) error {
	return &Error{Kind: KindMalformed, Op: op, Err: err}
}

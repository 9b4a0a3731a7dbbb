package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed remote operation.
type Kind int

const (
	// KindTransport covers network failures and unreadable responses.
	KindTransport Kind = iota + 1
	// KindRejected is a non-2xx answer from the server.
	KindRejected
	// KindAuth is a rejection that says the credential is no longer valid.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// ErrInvalidCall marks a malformed call made by this program, not a remote failure.
var ErrInvalidCall = errors.New("invalid gateway call")

// Error is the failed result of a remote operation.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsAuth reports whether err says the credential is invalid.
func IsAuth(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindAuth
}

// IsInvalidCall reports a programming-contract violation.
func IsInvalidCall(err error) bool {
	return errors.Is(err, ErrInvalidCall)
}

// classify turns a server rejection into an auth error when the status or
// message says the credential is bad.
func classify(status int, message string) Kind {
	if status == 401 || strings.Contains(strings.ToLower(message), "token") {
		return KindAuth
	}
	return KindRejected
}

func invalidCall(op, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidCall, fmt.Sprintf(format, args...))
}

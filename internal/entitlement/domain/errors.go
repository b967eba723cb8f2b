package domain

import "errors"

// Kind classifies entitlement errors for callers. Every failure crossing the
// service boundary carries exactly one kind.
type Kind string

const (
	// KindInvalidUserID indicates an empty or missing user identifier.
	// Caller error, never retried automatically.
	KindInvalidUserID Kind = "invalid_user_id"
	// KindInvalidSubscriptionData indicates a malformed or empty mutation
	// payload. Caller error.
	KindInvalidSubscriptionData Kind = "invalid_subscription_data"
	// KindNetwork indicates connectivity was unavailable at call time. The
	// mutation is persisted locally as pending.
	KindNetwork Kind = "network_error"
	// KindStorage indicates the durable store failed. Previous state is
	// preserved unchanged.
	KindStorage Kind = "storage_error"
	// KindCorruptData indicates a persisted record failed to deserialize.
	// Treated fail-closed: no entitlement is assumed.
	KindCorruptData Kind = "corrupt_data"
)

// ErrNotFound is returned by a StateRepository when no record exists for a
// user identifier.
var ErrNotFound = errors.New("entitlement state not found")

// Error wraps a failure with its taxonomy kind and originating operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + string(e.Kind) + ": " + msg
	}
	return string(e.Kind) + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so callers can match with errors.Is using a bare
// kind error, e.g. errors.Is(err, &Error{Kind: KindNetwork}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a taxonomy error.
func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain. Returns the empty
// kind for nil or unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

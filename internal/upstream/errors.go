package upstream

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a platform call failure. Call sites branch on the kind,
// never on message text.
type Kind string

const (
	KindNotAuthenticated Kind = "not_authenticated"
	KindMissingParameter Kind = "missing_parameter"
	KindNetwork          Kind = "network"
	KindBusiness         Kind = "business"
	KindEmptyPayload     Kind = "empty_payload"
	KindTimeout          Kind = "timeout"
)

// Error is the single error type returned by the platform client. The
// HTTP-200-with-business-error vs transport-failure distinction is resolved
// here and nowhere else.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an upstream error, or KindNetwork for anything
// that is not an *Error.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindNetwork
}

// IsAuthError reports whether the failure means the session token is no
// longer valid. Only this condition may clear a cached login state.
func IsAuthError(err error) bool {
	return KindOf(err) == KindNotAuthenticated
}

// authSignals are the backend message fragments that mean the token itself
// was rejected. The backend does not use a stable error code for this, so
// the sniffing lives here as a compatibility shim; the set tracks observed
// backend strings and may drift.
var authSignals = []string{
	"token expired",
	"token invalid",
	"invalid token",
	"not logged in",
	"login expired",
	"unauthorized",
}

// busySignals are technical backend failures that must never reach a player
// verbatim. They are rewritten to busyMessage.
var busySignals = []string{
	"permission denied",
	"lock.txt",
	".lock",
	"resource temporarily unavailable",
}

const busyMessage = "server busy, please retry"

// classifyBusiness turns a status:error envelope into a typed error:
// auth-signal messages become KindNotAuthenticated, technical noise is
// rewritten to the generic busy message, everything else passes through.
func classifyBusiness(op, message string) *Error {
	lower := strings.ToLower(message)
	for _, signal := range authSignals {
		if strings.Contains(lower, signal) {
			return &Error{Kind: KindNotAuthenticated, Op: op, Message: message}
		}
	}
	for _, signal := range busySignals {
		if strings.Contains(lower, signal) {
			return &Error{Kind: KindBusiness, Op: op, Message: busyMessage}
		}
	}
	return &Error{Kind: KindBusiness, Op: op, Message: message}
}

package services

// Session rejection reasons, surfaced verbatim to the client so it can
// decide between re-login and an IP-conflict message.
const (
	ReasonExpired    = "Session has expired or is invalid. Please log in again."
	ReasonSameIP     = "Already logged in from this address. Duplicate windows are not permitted."
	ReasonSuperseded = "This session was ended by a login from another location."
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// SessionRejectedError is the arbiter's classified verdict. The
// classification is advisory client messaging, not a security boundary;
// the bearer token has already been checked by the time it is produced.
type SessionRejectedError struct {
	Reason        string
	ConflictingIP bool
}

func (e *SessionRejectedError) Error() string { return e.Reason }

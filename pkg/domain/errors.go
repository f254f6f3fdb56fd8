package domain

import "errors"

// Sentinel errors shared by all stores and services in this domain.
//
// Concrete implementations (postgres, REST clients, ...) return richer error
// values which Unwrap() to one of these, so that callers can branch with
// errors.Is without knowing the backend.
var (
	// requested resource or coordinate (project, name, tag|uid) does not exist.
	ErrMissing = errors.New("missing")

	// a (project, name, tag) triple is already occupied on create.
	ErrAlreadyExists = errors.New("already exists")

	// malformed request value: bad reference, wildcard misuse, non-positive
	// partition size, and similar.
	ErrInvalidArgument = errors.New("invalid argument")

	// the authorization verifier denied the requested action.
	ErrForbidden = errors.New("forbidden")
)

// NewInvalidArgument wraps ErrInvalidArgument with a message.
func NewInvalidArgument(message string) error {
	return invalidArgument{message: message}
}

type invalidArgument struct {
	message string
}

func (e invalidArgument) Error() string {
	return e.message
}

func (e invalidArgument) Unwrap() error {
	return ErrInvalidArgument
}

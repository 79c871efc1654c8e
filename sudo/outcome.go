package sudo

import (
	"github.com/pkg/errors"
)

// Outcome classifies a finished authentication attempt.
type Outcome int

const (
	// Undetermined accompanies an error.
	Undetermined Outcome = iota
	Authenticated
	UnsupportedPlatform
	// WrongPassword: the escalation command prompted again after the
	// secret was sent.
	WrongPassword
	// NoAccessGranted: the output ended without the success marker.
	NoAccessGranted
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "Authenticated"
	case UnsupportedPlatform:
		return "UnsupportedPlatform"
	case WrongPassword:
		return "WrongPassword"
	case NoAccessGranted:
		return "NoAccessGranted"
	case TimedOut:
		return "TimedOut"
	default:
		return "Undetermined"
	}
}

// IOError reports that the escalation process could not be started or its
// streams failed. A rejected password is never an IOError.
type IOError struct {
	// Op is one of "start", "read", "write" or "wait".
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "elevation process " + e.Op + " failed: " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// Cause makes IOError transparent to errors.Cause.
func (e *IOError) Cause() error { return e.Err }

func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

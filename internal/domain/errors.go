package domain

import "errors"

// Call error taxonomy. Concrete errors wrap one of these together with the
// transport cause, so callers classify with errors.Is.
var (
	ErrJoin             = errors.New("join failed")
	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrPublish          = errors.New("publish failed")
	ErrSubscribe        = errors.New("subscribe failed")
	ErrTeardown         = errors.New("teardown failed")

	ErrInvalidState  = errors.New("invalid session state")
	ErrSessionClosed = errors.New("session closed")
)

// IsFatal reports whether err ends a join attempt.
func IsFatal(err error) bool {
	return errors.Is(err, ErrJoin) || errors.Is(err, ErrMediaAcquisition) || errors.Is(err, ErrPublish)
}

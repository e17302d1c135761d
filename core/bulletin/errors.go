package bulletin

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("bulletin not found")
	ErrGradeNotFound      = errors.New("grade not found")
	ErrExists             = errors.New("a bulletin already exists for this student, class and term")
	ErrConflict           = errors.New("bulletin was modified concurrently")
	ErrDuplicateCode      = errors.New("tracking number or verification code already issued")
	ErrBulletinLocked     = errors.New("bulletin has been sent and can no longer be modified")
	ErrInvalidGradeSet    = errors.New("sum of coefficients must be greater than zero")
	ErrVerificationFailed = errors.New("bulletin verification failed")
	ErrInvalidTransition  = errors.New("invalid bulletin transition")
)

// TransitionError reports an action that is not allowed from the bulletin's current status.
type TransitionError struct {
	Status Status
	Action Action
}

func (err *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a bulletin with status %q", err.Action, err.Status)
}

func (err *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsInvalidTransition reports whether err is caused by a *TransitionError.
func IsInvalidTransition(err error) bool {
	_, ok := errors.Cause(err).(*TransitionError)
	return ok
}

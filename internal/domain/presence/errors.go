package presence

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrThrottled      = errors.New("presence update throttled")
	ErrUpdateInFlight = errors.New("presence update already in progress")
	ErrInvalidStatus  = errors.New("invalid presence status")
)

// ThrottleError carries how long the caller has to wait. It matches
// ErrThrottled with errors.Is.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrThrottled, e.RetryAfter.Round(time.Millisecond))
}

func (e *ThrottleError) Is(target error) bool {
	return target == ErrThrottled
}

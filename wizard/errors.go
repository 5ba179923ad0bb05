package wizard

import (
	"errors"
	"fmt"
)

// ErrSubmitInFlight is returned when Submit is called while a previous
// submission has not finished.
var ErrSubmitInFlight = errors.New("submission already in progress")

// ValidationError reports a draft field that blocks submission. No external
// call is made once one is detected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AssetError reports a rejected image upload.
type AssetError struct {
	Reason string
	Err    error
}

func (e *AssetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset upload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("asset upload: %s", e.Reason)
}

func (e *AssetError) Unwrap() error { return e.Err }

// PersistenceError reports a rejected or empty record insert.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("agent persistence: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SchedulingError reports a failed posting-schedule call. It is logged and
// never fails a submission whose record insert already succeeded.
type SchedulingError struct {
	Status int
	Err    error
}

func (e *SchedulingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("posting schedule: %v", e.Err)
	}
	return fmt.Sprintf("posting schedule: status %d", e.Status)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// RemoteServiceError reports a failed chat/news/improve call. The session
// continues; the caller surfaces a substitute message.
type RemoteServiceError struct {
	Service string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError or the in-flight guard.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrSubmitInFlight)
}

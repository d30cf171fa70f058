package summarizer

import (
	"errors"
	"fmt"
)

// ErrSummarizationFailed is matched by every *FailedError.
var ErrSummarizationFailed = errors.New("summarization failed")

// Reason classifies a failure for logs and metrics. Callers treat every
// reason the same way.
type Reason string

const (
	ReasonTransport      Reason = "transport"
	ReasonTimeout        Reason = "timeout"
	ReasonEmpty          Reason = "empty"
	ReasonMalformed      Reason = "malformed"
	ReasonInvalidUrgency Reason = "invalid_urgency"
	ReasonInvalidSummary Reason = "invalid_summary"
)

type FailedError struct {
	Reason Reason
	Err    error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("summarizer: %s (%s)", ErrSummarizationFailed, e.Reason)
	}
	return fmt.Sprintf("summarizer: %s (%s): %v", ErrSummarizationFailed, e.Reason, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

func (e *FailedError) Is(target error) bool { return target == ErrSummarizationFailed }

func fail(reason Reason, err error) *FailedError {
	return &FailedError{Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason, or "" if err is not a FailedError.
func ReasonOf(err error) Reason {
	var ferr *FailedError
	if errors.As(err, &ferr) {
		return ferr.Reason
	}
	return ""
}

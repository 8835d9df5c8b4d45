package poller

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned by Submit for blank user stories. No request is made.
	ErrEmptyInput = errors.New("user story is empty")

	// ErrSuperseded is returned when a Submit or Resume lost the race against a
	// newer Submit, Resume or Cancel while its request was in flight.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// SubmissionError means the job could not be created. The job stays unsubmitted.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusFetchError means a status check failed at the transport level and the
// polling session for JobID was terminated.
type StatusFetchError struct {
	JobID string
	Err   error
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("status check for job %s failed: %v", e.JobID, e.Err)
}

func (e *StatusFetchError) Unwrap() error { return e.Err }

// RemoteTaskFailure is the generator reporting status "failed". Payload is the
// raw result it sent along.
type RemoteTaskFailure struct {
	JobID   string
	Payload json.RawMessage
}

func (e *RemoteTaskFailure) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	// A bare JSON string reads better unquoted.
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil {
		return fmt.Sprintf("job %s failed: %s", e.JobID, s)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, string(e.Payload))
}

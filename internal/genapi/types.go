package genapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"casegen/internal/models"
)

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	UserStory string `json:"inp_user_story"`
}

// GenerateResponse is the answer of POST /generate.
type GenerateResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// RemoteStatus is the status reported by GET /result/{id}.
type RemoteStatus string

const (
	StatusProcessing RemoteStatus = "processing"
	StatusDone       RemoteStatus = "done"
	StatusFailed     RemoteStatus = "failed"
)

// Valid reports whether s is one of the statuses the service documents.
func (s RemoteStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}

// JobStatus maps the remote status onto the local job lifecycle.
func (s RemoteStatus) JobStatus() models.JobStatus {
	switch s {
	case StatusDone:
		return models.JobStatusDone
	case StatusFailed:
		return models.JobStatusFailed
	default:
		return models.JobStatusProcessing
	}
}

// StatusResponse is the answer of GET /result/{id}.
//
// Result is left raw: when Status is done it is a two element array
// [TestCase[], SimilarExample[]], when failed it is an opaque error payload.
type StatusResponse struct {
	ID     string          `json:"id"`
	Status RemoteStatus    `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// DecodeResult interprets Result as a done payload. Missing elements, or a
// missing payload altogether, decode to empty sequences.
func (r *StatusResponse) DecodeResult() (*models.Result, error) {
	if isNull(r.Result) {
		return models.NewResult(nil, nil), nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(r.Result, &parts); err != nil {
		return nil, fmt.Errorf("result payload is not a [test_cases, similar_examples] pair: %w", err)
	}

	var cases []models.TestCase
	if len(parts) > 0 && !isNull(parts[0]) {
		if err := json.Unmarshal(parts[0], &cases); err != nil {
			return nil, fmt.Errorf("failed to decode generated test cases: %w", err)
		}
	}

	var examples []models.SimilarExample
	if len(parts) > 1 && !isNull(parts[1]) {
		if err := json.Unmarshal(parts[1], &examples); err != nil {
			return nil, fmt.Errorf("failed to decode similar examples: %w", err)
		}
	}

	for i := range examples {
		if examples[i].TestCases == nil {
			examples[i].TestCases = []models.TestCase{}
		}
	}

	return models.NewResult(cases, examples), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Package worker runs the submission pipeline: it pulls audio analysis jobs
// from the queue, scores each recording, and persists the feedback report and
// curriculum update.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrValidation marks malformed submissions. The loop settles these with
// Abandon so the broker's redelivery policy decides their fate.
var ErrValidation = errors.New("invalid submission")

// Submission is the queue message payload.
type Submission struct {
	SubmissionID string `json:"submissionId"`
	ChildID      string `json:"childId"`
	BlobURL      string `json:"blobUrl"`
}

// ParseSubmission decodes and validates a message payload. All three fields
// are required.
func ParseSubmission(data []byte) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return Submission{}, fmt.Errorf("%w: decode payload: %v", ErrValidation, err)
	}

	var errs []error
	if sub.SubmissionID == "" {
		errs = append(errs, errors.New("missing submissionId"))
	}
	if sub.ChildID == "" {
		errs = append(errs, errors.New("missing childId"))
	}
	if sub.BlobURL == "" {
		errs = append(errs, errors.New("missing blobUrl"))
	}
	if len(errs) > 0 {
		return Submission{}, fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
	}
	return sub, nil
}

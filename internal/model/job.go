package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTerminalState is returned when a transition is attempted on a
	// completed or failed job.
	ErrTerminalState = errors.New("job is in a terminal state")

	// ErrInvalidTransition is returned for any other disallowed status change.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// ReportJob is the durable record of one report-generation job. The owner id
// scopes every lookup; a job is never visible to another owner. Only the
// worker executing the job mutates it, always through the transition methods
// below so the state machine invariants hold.
type ReportJob struct {
	ID           string        `json:"jobId"`
	OwnerID      string        `json:"ownerId"`
	Status       JobStatus     `json:"status"`
	Progress     int           `json:"progress"`
	StatusDetail string        `json:"statusDetail,omitempty"`
	Request      ReportRequest `json:"request"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	ErrorDetail  string        `json:"errorDetail,omitempty"`
	ResultRef    string        `json:"resultRef,omitempty"`
	ResultSize   int64         `json:"resultSizeBytes,omitempty"`
	ContentType  string        `json:"contentType,omitempty"`
}

// Start moves the job from Queued to Processing and records StartedAt.
func (j *ReportJob) Start(now time.Time) error {
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	if j.Status != JobStatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusProcessing)
	}
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	return nil
}

// SetProgress updates progress while Processing. Progress never decreases;
// the detail text may change freely.
func (j *ReportJob) SetProgress(percent int, detail string) error {
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: progress update while %s", ErrInvalidTransition, j.Status)
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	j.StatusDetail = detail
	return nil
}

// Complete moves the job to its successful terminal state. The result
// reference and size are published in the same transition, so a reader that
// observes Completed always sees them.
func (j *ReportJob) Complete(resultRef, contentType string, size int64, now time.Time) error {
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.StatusDetail = "Report generation completed"
	j.ResultRef = resultRef
	j.ContentType = contentType
	j.ResultSize = size
	j.CompletedAt = &now
	return nil
}

// Fail moves the job to its failed terminal state. Allowed from Queued as
// well as Processing so a job whose dispatch never ran still ends terminal.
func (j *ReportJob) Fail(detail string, now time.Time) error {
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = JobStatusFailed
	j.StatusDetail = "Report generation failed"
	j.ErrorDetail = detail
	j.CompletedAt = &now
	return nil
}

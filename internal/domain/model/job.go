// Package model defines the core data types used throughout the vidforge job system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a generation job.
type JobStatus string

// Resolution represents the output resolution of a generation job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Resolution string

const (
	// JobStatusQueued indicates a job is waiting to be picked up by a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a worker is currently generating the video.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the video was generated and encoded successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed terminally.
	JobStatusFailed JobStatus = "failed"

	// Resolution480p renders 848x480 output.
	Resolution480p Resolution = "480p"
	// Resolution720p renders 1280x720 output.
	Resolution720p Resolution = "720p"
	// Resolution1080p renders 1920x1080 output.
	Resolution1080p Resolution = "1080p"
)

// Submission bounds. Duration is seconds of output video.
const (
	MinDuration = 1
	MaxDuration = 30
	MinFPS      = 1
	MaxFPS      = 24
)

// ErrNoJobsAvailable is returned when no jobs are available on the queue.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusProcessing ||
		s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true once no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler for Resolution to allow env parsing.
func (r *Resolution) UnmarshalText(text []byte) error {
	v := Resolution(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid resolution: %q", string(text))
	}
	*r = v
	return nil
}

// Valid returns true if the Resolution is one of the supported output sizes.
func (r Resolution) Valid() bool {
	return r == Resolution480p || r == Resolution720p || r == Resolution1080p
}

// Dimensions returns the pixel width and height for the resolution.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Resolution720p:
		return 1280, 720
	case Resolution1080p:
		return 1920, 1080
	default:
		return 848, 480
	}
}

// Job represents one text-to-video generation request and its lifecycle state.
type Job struct {
	ID             string     `json:"id"                         db:"id"`
	Prompt         string     `json:"prompt"                     db:"prompt"`
	Duration       int        `json:"duration"                   db:"duration"`
	FPS            int        `json:"fps"                        db:"fps"`
	Resolution     Resolution `json:"resolution"                 db:"resolution"`
	Status         JobStatus  `json:"status"                     db:"status"`
	Attempt        int        `json:"attempt"                    db:"attempt"`
	MaxAttempts    int        `json:"max_attempts"               db:"max_attempts"`
	ResultPath     *string    `json:"result_path,omitempty"      db:"result_path"`
	ErrorMessage   *string    `json:"error_message,omitempty"    db:"error_message"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time  `json:"created_at"                 db:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"       db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"      db:"finished_at"`
	UpdatedAt      time.Time  `json:"updated_at"                 db:"updated_at"`
}

// CreateJobRequest represents a request to submit a new generation job.
type CreateJobRequest struct {
	Prompt     string     `json:"prompt"`
	Duration   int        `json:"duration"`
	FPS        int        `json:"fps"`
	Resolution Resolution `json:"resolution"`
}

// ValidationError describes a rejected submission field. Validation failures
// are surfaced to the caller immediately and never enter the queue.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the CreateJobRequest bounds.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "must not be empty"}
	}
	if r.Duration < MinDuration || r.Duration > MaxDuration {
		return &ValidationError{
			Field:   "duration",
			Message: fmt.Sprintf("must be between %d and %d seconds", MinDuration, MaxDuration),
		}
	}
	if r.FPS < MinFPS || r.FPS > MaxFPS {
		return &ValidationError{
			Field:   "fps",
			Message: fmt.Sprintf("must be between %d and %d", MinFPS, MaxFPS),
		}
	}
	if !r.Resolution.Valid() {
		return &ValidationError{Field: "resolution", Message: "must be one of 480p, 720p, 1080p"}
	}
	return nil
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobListOptions filters List results.
type JobListOptions struct {
	Status JobStatus // zero value lists all statuses
	Limit  int
	Offset int
}

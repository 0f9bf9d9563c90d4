package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyExists is returned on an ID collision during insert.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrStatusConflict is returned when a status transition finds the job in
	// an unexpected state. Transitions are compare-and-swap updates; a
	// conflict means another actor moved the job first.
	ErrStatusConflict = errors.New("job status conflict")
)

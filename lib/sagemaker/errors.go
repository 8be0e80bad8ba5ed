package sagemaker

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalState     = errors.New("illegal state")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// IllegalStateError is returned when an operation needs a step that has not
// happened yet, such as creating a model before any training job finished.
type IllegalStateError struct {
	Op     string
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *IllegalStateError) Unwrap() error {
	return ErrIllegalState
}

// TransportError wraps a failure returned by the remote platform. The
// original error is kept as-is so callers can still inspect it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

var ErrJobFailed = errors.New("job failed")

// JobFailedError is returned by the Wait calls when the remote job or
// endpoint ends in a failed state.
type JobFailedError struct {
	Name   string
	Status string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s ended with status %s: %s", e.Name, e.Status, e.Reason)
}

func (e *JobFailedError) Unwrap() error {
	return ErrJobFailed
}

package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Common resource errors
	ErrNotFound      = errors.New("resource not found")
	ErrShotNotFound  = errors.New("shot not found")
	ErrOrphanFrame   = errors.New("frame references a shot that does not exist")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("resource already exists")

	// Input errors, rejected before any network call
	ErrBadRequest          = errors.New("bad request")
	ErrInvalidInput        = errors.New("invalid input data")
	ErrEmptyScript         = errors.New("script text is empty")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("uploaded file is too large")

	// Planner errors
	ErrInvalidPlan     = errors.New("model returned an invalid shot plan")
	ErrInvalidPlanSize = errors.New("model returned the wrong number of shots")

	// Generation errors
	ErrGenerationInProgress = errors.New("frame generation is already in progress for this project")
	ErrUpstream             = errors.New("upstream service error")

	ErrInternalServer = errors.New("internal server error")
)

// UpstreamError carries an upstream service failure with its original message.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// Unwrap lets errors.Is(err, ErrUpstream) match any upstream failure.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

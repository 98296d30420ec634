package util

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrMissingInput       = errors.New("missing input")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrNothingToPublish   = errors.New("nothing to publish")
	ErrQueueUnavailable   = errors.New("processing queue unavailable")
)

package entity

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	// Guard errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrMessageTooLong    = errors.New("message too long")
	ErrSuspiciousInput   = errors.New("suspicious input")

	// Capability errors
	ErrTranscriptionFailed   = errors.New("transcription failed")
	ErrEmbeddingFailed       = errors.New("embedding failed")
	ErrGenerationFailed      = errors.New("generation failed")
	ErrImageGenerationFailed = errors.New("image generation failed")

	// Index errors
	ErrIndexCorruptionRisk = errors.New("index corruption risk")
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")

	// Document errors
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentInactive = errors.New("document is inactive")
	ErrEmptyDocument    = errors.New("document has no text")

	// File errors
	ErrInvalidFile      = errors.New("invalid file")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidExtension = errors.New("invalid file extension")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// RateLimitError is returned by the guard when a sender is over quota.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimitExceeded, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// MessageTooLongError carries the offending length for the user notice.
type MessageTooLongError struct {
	Length int
	Max    int
}

func (e *MessageTooLongError) Error() string {
	return fmt.Sprintf("%s: %d characters (max %d)", ErrMessageTooLong, e.Length, e.Max)
}

func (e *MessageTooLongError) Unwrap() error {
	return ErrMessageTooLong
}

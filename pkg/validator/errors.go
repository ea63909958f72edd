package validator

import "errors"

var (
	// ErrSubjectNotFound is returned when the directory has no entry for
	// the subject a write refers to.
	ErrSubjectNotFound = errors.New("subject not found in directory")

	// ErrTenantMismatch is returned when the caller-supplied tenant does
	// not match the subject's true tenant. The write is rejected, never
	// silently reassigned.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrMissingIdentifier is returned when the directory has no external
	// identifier for a subject a fact is being written for. Writing a blank
	// identifier would silently break later correlation, so the write fails
	// instead.
	ErrMissingIdentifier = errors.New("subject has no external identifier")

	// ErrArithmeticMismatch is returned when a fact's component minutes do
	// not sum to its stated worked total.
	ErrArithmeticMismatch = errors.New("component minutes do not sum to worked total")

	// ErrNegativeValue is returned when any minute field of a fact is
	// negative.
	ErrNegativeValue = errors.New("negative minute value")

	// ErrBoundsViolation is returned when a fact's absence minutes exceed
	// the scheduled minutes of the day's active schedule record.
	ErrBoundsViolation = errors.New("absence minutes exceed scheduled minutes")
)

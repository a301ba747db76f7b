// Package storage defines the persistence contract for the submission
// journal: one record per submitted transaction envelope, so a transport
// failure during submit can be resolved by query instead of resubmission.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested journal record is missing.
var ErrNotFound = errors.New("record not found")

// Outcome classifies what the gateway reported for a submission.
type Outcome string

const (
	// OutcomeConfirmed means the gateway accepted the envelope.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRejected means the gateway rejected the envelope outright.
	OutcomeRejected Outcome = "rejected"
	// OutcomeConflict means the envelope's sequence no longer matched the
	// account's expected value.
	OutcomeConflict Outcome = "conflict"
	// OutcomeUnknown means the transport failed mid-submit; ledger-side
	// success was not observable and the envelope must not be resubmitted.
	OutcomeUnknown Outcome = "unknown"
)

// Submission stores one submit attempt.
type Submission struct {
	InvocationID   string
	AccountID      string
	Operation      string // "write" or "delete"
	NoteName       string
	Sequence       int64
	EnvelopeHash   string
	Outcome        Outcome
	ConfirmationID string // gateway transaction hash, when confirmed
	Detail         string // gateway reason, when rejected
	SubmittedAt    time.Time
}

// SubmissionStore persists submission records.
type SubmissionStore interface {
	// RecordSubmission inserts or updates the record keyed by envelope hash.
	RecordSubmission(ctx context.Context, submission Submission) error
	// ListRecentSubmissions returns up to limit records, newest first.
	ListRecentSubmissions(ctx context.Context, limit int) ([]Submission, error)
	// GetSubmission fetches one record by envelope hash.
	GetSubmission(ctx context.Context, envelopeHash string) (Submission, error)
}

// Package sqlite provides a SQLite-backed submission journal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/stellar-notepad/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists submission records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite submission journal and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordSubmission inserts or updates the record keyed by envelope hash. A
// second record for the same envelope overwrites the outcome, which lets the
// unknown state resolve once the operator learns what happened.
func (s *Store) RecordSubmission(ctx context.Context, submission storage.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	envelopeHash := strings.TrimSpace(submission.EnvelopeHash)
	if envelopeHash == "" {
		return fmt.Errorf("envelope hash is required")
	}
	accountID := strings.TrimSpace(submission.AccountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	submittedAt := submission.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO submissions (
		   envelope_hash,
		   invocation_id,
		   account_id,
		   operation,
		   note_name,
		   sequence,
		   outcome,
		   confirmation_id,
		   detail,
		   submitted_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(envelope_hash) DO UPDATE SET
		   outcome = excluded.outcome,
		   confirmation_id = excluded.confirmation_id,
		   detail = excluded.detail`,
		envelopeHash,
		submission.InvocationID,
		accountID,
		submission.Operation,
		submission.NoteName,
		submission.Sequence,
		string(submission.Outcome),
		submission.ConfirmationID,
		submission.Detail,
		toMillis(submittedAt),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// ListRecentSubmissions returns up to limit records, newest first.
func (s *Store) ListRecentSubmissions(ctx context.Context, limit int) ([]storage.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT envelope_hash, invocation_id, account_id, operation, note_name,
		        sequence, outcome, confirmation_id, detail, submitted_at
		 FROM submissions
		 ORDER BY submitted_at DESC, envelope_hash
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []storage.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return submissions, nil
}

// GetSubmission fetches one record by envelope hash.
func (s *Store) GetSubmission(ctx context.Context, envelopeHash string) (storage.Submission, error) {
	if err := ctx.Err(); err != nil {
		return storage.Submission{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Submission{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT envelope_hash, invocation_id, account_id, operation, note_name,
		        sequence, outcome, confirmation_id, detail, submitted_at
		 FROM submissions
		 WHERE envelope_hash = ?`,
		strings.TrimSpace(envelopeHash),
	)
	submission, err := scanSubmission(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Submission{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Submission{}, err
	}
	return submission, nil
}

func scanSubmission(scan func(dest ...any) error) (storage.Submission, error) {
	var submission storage.Submission
	var outcome string
	var submittedAt int64
	err := scan(
		&submission.EnvelopeHash,
		&submission.InvocationID,
		&submission.AccountID,
		&submission.Operation,
		&submission.NoteName,
		&submission.Sequence,
		&outcome,
		&submission.ConfirmationID,
		&submission.Detail,
		&submittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Submission{}, err
		}
		return storage.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	submission.Outcome = storage.Outcome(outcome)
	submission.SubmittedAt = fromMillis(submittedAt)
	return submission, nil
}

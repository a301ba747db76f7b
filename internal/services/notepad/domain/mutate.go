package domain

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/stellar-notepad/internal/horizon"
	"github.com/louisbranch/stellar-notepad/internal/notecodec"
	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage"
	"github.com/louisbranch/stellar-notepad/internal/txbuilder"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// WriteNoteInput represents the MCP tool input for writing a note.
type WriteNoteInput struct {
	AccountID string `json:"account_id" jsonschema:"ledger account identifier to write the note to"`
	Name      string `json:"name" jsonschema:"note name (at most 64 bytes)"`
	Content   string `json:"content" jsonschema:"note text content (at most 64 bytes)"`
}

// WriteNoteResult represents the MCP tool output for writing a note.
type WriteNoteResult struct {
	AccountID      string `json:"account_id" jsonschema:"ledger account identifier"`
	Name           string `json:"name" jsonschema:"note name"`
	ConfirmationID string `json:"confirmation_id" jsonschema:"ledger transaction hash"`
	Ledger         int64  `json:"ledger" jsonschema:"ledger number the transaction landed in"`
}

// DeleteNoteInput represents the MCP tool input for deleting a note.
type DeleteNoteInput struct {
	AccountID string `json:"account_id" jsonschema:"ledger account identifier to delete the note from"`
	Name      string `json:"name" jsonschema:"note name"`
}

// DeleteNoteResult represents the MCP tool output for deleting a note.
type DeleteNoteResult struct {
	AccountID      string `json:"account_id" jsonschema:"ledger account identifier"`
	Name           string `json:"name" jsonschema:"note name"`
	Deleted        bool   `json:"deleted" jsonschema:"whether the deletion was submitted"`
	ConfirmationID string `json:"confirmation_id" jsonschema:"ledger transaction hash"`
	Ledger         int64  `json:"ledger" jsonschema:"ledger number the transaction landed in"`
}

// WriteNoteTool defines the MCP tool schema for writing a note.
func WriteNoteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "write_note",
		Description: "Writes or updates a note as a data entry on a ledger account",
	}
}

// DeleteNoteTool defines the MCP tool schema for deleting a note.
func DeleteNoteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_note",
		Description: "Deletes a note from a ledger account by submitting a data entry with no value",
	}
}

// WriteNoteHandler executes a write-note request.
func WriteNoteHandler(mutator Mutator) mcp.ToolHandlerFor[WriteNoteInput, WriteNoteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input WriteNoteInput) (*mcp.CallToolResult, WriteNoteResult, error) {
		entry, err := notecodec.Encode(input.Name, input.Content)
		if err != nil {
			return nil, WriteNoteResult{}, toolError(err)
		}
		confirmation, err := mutator.submitEntry(ctx, input.AccountID, "write", entry)
		if err != nil {
			return nil, WriteNoteResult{}, toolError(err)
		}
		return nil, WriteNoteResult{
			AccountID:      input.AccountID,
			Name:           input.Name,
			ConfirmationID: confirmation.Hash,
			Ledger:         confirmation.Ledger,
		}, nil
	}
}

// DeleteNoteHandler executes a delete-note request. The deletion is itself a
// write: a transaction carrying the entry name with an absent value.
func DeleteNoteHandler(mutator Mutator) mcp.ToolHandlerFor[DeleteNoteInput, DeleteNoteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteNoteInput) (*mcp.CallToolResult, DeleteNoteResult, error) {
		entry, err := notecodec.EncodeDeletion(input.Name)
		if err != nil {
			return nil, DeleteNoteResult{}, toolError(err)
		}
		confirmation, err := mutator.submitEntry(ctx, input.AccountID, "delete", entry)
		if err != nil {
			return nil, DeleteNoteResult{}, toolError(err)
		}
		return nil, DeleteNoteResult{
			AccountID:      input.AccountID,
			Name:           input.Name,
			Deleted:        true,
			ConfirmationID: confirmation.Hash,
			Ledger:         confirmation.Ledger,
		}, nil
	}
}

// submitEntry runs the serialized mutation cycle: acquire the account gate,
// fetch a fresh snapshot, build and sign a single-use envelope, submit it,
// and release the gate on every path.
func (m Mutator) submitEntry(ctx context.Context, accountID, operation string, entry notecodec.DataEntry) (horizon.SubmitResult, error) {
	if err := txbuilder.CheckAccountID(accountID); err != nil {
		return horizon.SubmitResult{}, err
	}
	if m.Signer == nil {
		return horizon.SubmitResult{}, errors.New(errors.CodeSignerMissing, "no signer is configured; this deployment is read-only")
	}

	invocationID := uuid.NewString()

	// Waiting for the account gate is unbounded: a queued caller waits as
	// long as the holder needs, subject only to its own cancellation. The
	// mutation deadline starts once the gate is held.
	release, err := m.Locks.Acquire(ctx, accountID)
	if err != nil {
		return horizon.SubmitResult{}, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, mutateTimeout)
	defer cancel()

	// The snapshot must be fetched after the gate is held, never before:
	// a queued caller may have consumed the sequence we would otherwise use.
	snapshot, err := fetchWithRetry(runCtx, m.Gateway, accountID)
	if err != nil {
		return horizon.SubmitResult{}, err
	}

	tx, err := m.Builder.Build(snapshot, entry)
	if err != nil {
		return horizon.SubmitResult{}, err
	}
	envelope, err := m.Builder.Sign(runCtx, tx, m.Signer)
	if err != nil {
		return horizon.SubmitResult{}, err
	}

	// A submitted transaction cannot be un-submitted, so the gateway call is
	// allowed to complete even if the caller's connection goes away; only the
	// result is discarded.
	submitCtx, cancelSubmit := context.WithTimeout(context.WithoutCancel(runCtx), txbuilder.ValidityWindow)
	defer cancelSubmit()

	result, submitErr := m.Gateway.Submit(submitCtx, envelope.Base64())
	m.journal(invocationID, accountID, operation, entry.Name, tx.Sequence, envelope.Hash(), result, submitErr)

	if submitErr != nil {
		log.Printf("notepad %s failed account_id=%s name=%s sequence=%d invocation_id=%s code=%s",
			operation, accountID, entry.Name, tx.Sequence, invocationID, errors.CodeOf(submitErr))
		return horizon.SubmitResult{}, submitErr
	}

	log.Printf("notepad %s confirmed account_id=%s name=%s sequence=%d invocation_id=%s tx=%s",
		operation, accountID, entry.Name, tx.Sequence, invocationID, result.Hash)
	return result, nil
}

// journal records the submit attempt when a journal is configured. Journal
// failures are logged, not surfaced: the ledger outcome already happened.
func (m Mutator) journal(invocationID, accountID, operation, noteName string, sequence int64, envelopeHash string, result horizon.SubmitResult, submitErr error) {
	if m.Journal == nil {
		return
	}
	submission := storage.Submission{
		InvocationID: invocationID,
		AccountID:    accountID,
		Operation:    operation,
		NoteName:     noteName,
		Sequence:     sequence,
		EnvelopeHash: envelopeHash,
		SubmittedAt:  time.Now(),
	}
	switch {
	case submitErr == nil:
		submission.Outcome = storage.OutcomeConfirmed
		submission.ConfirmationID = result.Hash
	case errors.HasCode(submitErr, errors.CodeOrderingConflict):
		submission.Outcome = storage.OutcomeConflict
		submission.Detail = submitErr.Error()
	case errors.HasCode(submitErr, errors.CodeGatewayUnavailable):
		// Ledger-side success is not observable: record unknown so the
		// operator resolves it by query, never by resubmission.
		submission.Outcome = storage.OutcomeUnknown
		submission.Detail = submitErr.Error()
	default:
		submission.Outcome = storage.OutcomeRejected
		submission.Detail = submitErr.Error()
	}

	journalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Journal.RecordSubmission(journalCtx, submission); err != nil {
		log.Printf("notepad journal write failed invocation_id=%s err=%v", invocationID, err)
	}
}

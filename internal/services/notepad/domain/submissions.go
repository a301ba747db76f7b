package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// submissionsLimit caps how many journal records the resource returns.
const submissionsLimit = 50

// SubmissionEntry represents one journaled submit attempt.
type SubmissionEntry struct {
	InvocationID   string `json:"invocation_id"`
	AccountID      string `json:"account_id"`
	Operation      string `json:"operation"`
	NoteName       string `json:"note_name"`
	Sequence       int64  `json:"sequence"`
	EnvelopeHash   string `json:"envelope_hash"`
	Outcome        string `json:"outcome"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
	Detail         string `json:"detail,omitempty"`
	SubmittedAt    string `json:"submitted_at"`
}

// SubmissionsPayload represents the resource payload for the journal listing.
type SubmissionsPayload struct {
	Submissions []SubmissionEntry `json:"submissions"`
}

// SubmissionsResource defines the MCP resource for recent submissions.
func SubmissionsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "recent_submissions",
		Title:       "Recent submissions",
		Description: "Journal of recently submitted transactions and their outcomes",
		MIMEType:    "application/json",
		URI:         "submissions://recent",
	}
}

// SubmissionsResourceHandler returns the recent-submissions journal listing.
func SubmissionsResourceHandler(journal storage.SubmissionStore) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if journal == nil {
			return nil, fmt.Errorf("submission journal is not configured")
		}

		uri := SubmissionsResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		submissions, err := journal.ListRecentSubmissions(runCtx, submissionsLimit)
		if err != nil {
			return nil, fmt.Errorf("list submissions: %w", err)
		}

		payload := SubmissionsPayload{}
		for _, submission := range submissions {
			payload.Submissions = append(payload.Submissions, SubmissionEntry{
				InvocationID:   submission.InvocationID,
				AccountID:      submission.AccountID,
				Operation:      submission.Operation,
				NoteName:       submission.NoteName,
				Sequence:       submission.Sequence,
				EnvelopeHash:   submission.EnvelopeHash,
				Outcome:        string(submission.Outcome),
				ConfirmationID: submission.ConfirmationID,
				Detail:         submission.Detail,
				SubmittedAt:    submission.SubmittedAt.UTC().Format(time.RFC3339),
			})
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal submissions: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

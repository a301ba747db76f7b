package domain

import (
	"context"
	"sort"

	"github.com/louisbranch/stellar-notepad/internal/notecodec"
	"github.com/louisbranch/stellar-notepad/internal/txbuilder"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadNotesInput represents the MCP tool input for reading notes.
type ReadNotesInput struct {
	AccountID string `json:"account_id" jsonschema:"ledger account identifier to read notes from"`
}

// UnreadableEntry reports a data entry whose value did not decode as text.
// It is surfaced with its raw bytes rather than dropped.
type UnreadableEntry struct {
	Name  string `json:"name" jsonschema:"data entry name"`
	Bytes string `json:"bytes" jsonschema:"base64 raw entry bytes"`
}

// ReadNotesResult represents the MCP tool output for reading notes.
type ReadNotesResult struct {
	AccountID  string            `json:"account_id" jsonschema:"ledger account identifier"`
	Notes      map[string]string `json:"notes" jsonschema:"mapping of note name to text content"`
	Unreadable []UnreadableEntry `json:"unreadable,omitempty" jsonschema:"entries that did not decode as text"`
}

// ReadNotesTool defines the MCP tool schema for reading notes.
func ReadNotesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_notes",
		Description: "Reads all notes stored as data entries on a ledger account",
	}
}

// ReadNotesHandler executes a read-notes request. Reads never take the
// per-account mutation gate: each read reflects some valid past state.
func ReadNotesHandler(gateway Gateway) mcp.ToolHandlerFor[ReadNotesInput, ReadNotesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReadNotesInput) (*mcp.CallToolResult, ReadNotesResult, error) {
		if err := txbuilder.CheckAccountID(input.AccountID); err != nil {
			return nil, ReadNotesResult{}, toolError(err)
		}

		runCtx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()

		snapshot, err := fetchWithRetry(runCtx, gateway, input.AccountID)
		if err != nil {
			return nil, ReadNotesResult{}, toolError(err)
		}

		result := ReadNotesResult{
			AccountID: input.AccountID,
			Notes:     make(map[string]string, len(snapshot.Data)),
		}
		for name, transportValue := range snapshot.Data {
			entry := notecodec.Decode(name, transportValue)
			if entry.Readable {
				result.Notes[entry.Name] = entry.Text
				continue
			}
			result.Unreadable = append(result.Unreadable, UnreadableEntry{
				Name:  entry.Name,
				Bytes: notecodec.Transport(entry.Raw),
			})
		}
		sort.Slice(result.Unreadable, func(i, j int) bool {
			return result.Unreadable[i].Name < result.Unreadable[j].Name
		})

		return nil, result, nil
	}
}

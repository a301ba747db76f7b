package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/louisbranch/stellar-notepad/internal/horizon"
	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
	"github.com/louisbranch/stellar-notepad/internal/seqlock"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage"
	"github.com/louisbranch/stellar-notepad/internal/txbuilder"
)

const (
	// readTimeout bounds a read-notes call.
	readTimeout = 10 * time.Second
	// mutateTimeout bounds the mutation cycle after the account gate is
	// held; waiting for the gate itself is unbounded. It exceeds the
	// envelope validity window so a signed envelope is never abandoned
	// unsubmitted.
	mutateTimeout = 45 * time.Second
)

// Gateway is the narrow contract to the ledger gateway.
type Gateway interface {
	FetchAccount(ctx context.Context, accountID string) (horizon.Snapshot, error)
	Submit(ctx context.Context, envelopeBase64 string) (horizon.SubmitResult, error)
}

// Locks is the per-account mutation admission gate.
type Locks interface {
	Acquire(ctx context.Context, accountID string) (seqlock.Release, error)
}

// Mutator bundles the collaborators a mutating tool call needs. Signer may be
// nil for read-only deployments; Journal may be nil when journaling is not
// configured.
type Mutator struct {
	Gateway Gateway
	Locks   Locks
	Builder *txbuilder.Builder
	Signer  txbuilder.Signer
	Journal storage.SubmissionStore
}

// fetchWithRetry reads an account snapshot, retrying only transient gateway
// failures with bounded exponential backoff. Every retry fetches fresh state,
// so this is safe for both the read path and the locked mutation path.
func fetchWithRetry(ctx context.Context, gateway Gateway, accountID string) (horizon.Snapshot, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.RetryWithData(func() (horizon.Snapshot, error) {
		snapshot, err := gateway.FetchAccount(ctx, accountID)
		if err != nil && !errors.HasCode(err, errors.CodeGatewayUnavailable) {
			return horizon.Snapshot{}, backoff.Permanent(err)
		}
		return snapshot, err
	}, policy)
}

// toolError normalizes a downstream failure into the single protocol-level
// error shape: a machine-readable kind followed by a human-readable message.
// The error fails only the in-flight call, never the session.
func toolError(err error) error {
	return fmt.Errorf("%s: %s", errors.CodeOf(err), err.Error())
}

package txbuilder

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
)

// Signer produces a signature over a transaction signature payload. The two
// implementations cover a server-held credential and an external signing
// collaborator (wallet) that may decline.
type Signer interface {
	// AccountID returns the signer's public account identifier.
	AccountID() string
	// Sign signs the 32-byte signature payload.
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// LocalSigner signs with a process-held ed25519 seed, loaded once at startup
// and immutable for the process lifetime.
type LocalSigner struct {
	accountID  string
	privateKey ed25519.PrivateKey
}

// NewLocalSigner derives a signer from a checksummed secret seed.
func NewLocalSigner(secretSeed string) (*LocalSigner, error) {
	seed, err := DecodeSeed(secretSeed)
	if err != nil {
		return nil, fmt.Errorf("decode signer seed: %w", err)
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	publicKey := privateKey.Public().(ed25519.PublicKey)
	return &LocalSigner{
		accountID:  EncodeAccountID(publicKey),
		privateKey: privateKey,
	}, nil
}

// AccountID returns the signer's public account identifier.
func (s *LocalSigner) AccountID() string {
	return s.accountID
}

// Sign signs the payload with the held private key.
func (s *LocalSigner) Sign(_ context.Context, payload []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, payload), nil
}

// Collaborator is the narrow interface to an external signing party. It
// receives the signature payload and returns the signature, or a
// user-declined error.
type Collaborator interface {
	SignPayload(ctx context.Context, accountID string, payload []byte) ([]byte, error)
}

// CollaboratorSigner delegates signing to an external collaborator on behalf
// of a fixed account.
type CollaboratorSigner struct {
	accountID    string
	collaborator Collaborator
}

// NewCollaboratorSigner wires an external collaborator as the signing
// strategy for accountID.
func NewCollaboratorSigner(accountID string, collaborator Collaborator) (*CollaboratorSigner, error) {
	if err := CheckAccountID(accountID); err != nil {
		return nil, err
	}
	if collaborator == nil {
		return nil, fmt.Errorf("signing collaborator is required")
	}
	return &CollaboratorSigner{accountID: accountID, collaborator: collaborator}, nil
}

// AccountID returns the account the collaborator signs for.
func (s *CollaboratorSigner) AccountID() string {
	return s.accountID
}

// Sign requests a signature from the collaborator.
func (s *CollaboratorSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	signature, err := s.collaborator.SignPayload(ctx, s.accountID, payload)
	if err != nil {
		if errors.HasCode(err, errors.CodeSigningDeclined) {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeSigningDeclined, "external signer did not sign the transaction", err)
	}
	return signature, nil
}

// Declined builds the error an external collaborator returns when the user
// refuses to sign.
func Declined() error {
	return errors.New(errors.CodeSigningDeclined, "signing request was declined")
}

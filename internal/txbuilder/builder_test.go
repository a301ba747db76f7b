package txbuilder

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/stellar-notepad/internal/horizon"
	"github.com/louisbranch/stellar-notepad/internal/notecodec"
	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
)

// testSeed is a fixed 32-byte signing seed for deterministic keys.
var testSeed = bytes.Repeat([]byte{0x42}, 32)

func testSigner(t *testing.T) *LocalSigner {
	t.Helper()
	signer, err := NewLocalSigner(EncodeSeed(testSeed))
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return signer
}

func testSnapshot(t *testing.T, sequence int64) horizon.Snapshot {
	t.Helper()
	return horizon.Snapshot{
		AccountID: testSigner(t).AccountID(),
		Sequence:  sequence,
		Data:      map[string]string{},
	}
}

func TestStrkeyRoundTrip(t *testing.T) {
	publicKey := bytes.Repeat([]byte{0xab}, 32)
	accountID := EncodeAccountID(publicKey)
	if !strings.HasPrefix(accountID, "G") {
		t.Errorf("expected account id to start with G, got %q", accountID)
	}
	decoded, err := DecodeAccountID(accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, publicKey) {
		t.Error("round trip mismatch")
	}

	seed := EncodeSeed(testSeed)
	if !strings.HasPrefix(seed, "S") {
		t.Errorf("expected seed to start with S, got %q", seed)
	}
	decodedSeed, err := DecodeSeed(seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decodedSeed, testSeed) {
		t.Error("seed round trip mismatch")
	}
}

func TestDecodeAccountIDRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "not base32", id: "!!!!"},
		{name: "seed passed as account", id: EncodeSeed(testSeed)},
		{name: "truncated", id: EncodeAccountID(bytes.Repeat([]byte{1}, 32))[:20]},
		{name: "corrupted checksum", id: flipLastRune(EncodeAccountID(bytes.Repeat([]byte{1}, 32)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeAccountID(tt.id); !errors.HasCode(err, errors.CodeAccountIDInvalid) {
				t.Fatalf("expected ACCOUNT_ID_INVALID, got %v", err)
			}
		})
	}
}

func flipLastRune(s string) string {
	last := s[len(s)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	return s[:len(s)-1] + string(replacement)
}

func TestBuild(t *testing.T) {
	builder := New(TestnetPassphrase)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	builder.now = func() time.Time { return fixed }

	entry, err := notecodec.Encode("note_2", "world")
	if err != nil {
		t.Fatalf("encode entry: %v", err)
	}
	tx, err := builder.Build(testSnapshot(t, 5), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx.Sequence != 6 {
		t.Errorf("expected sequence 6, got %d", tx.Sequence)
	}
	if tx.Fee != BaseFee {
		t.Errorf("expected fee %d, got %d", BaseFee, tx.Fee)
	}
	if tx.MinTime != fixed.Unix() {
		t.Errorf("expected min time %d, got %d", fixed.Unix(), tx.MinTime)
	}
	if want := fixed.Add(ValidityWindow).Unix(); tx.MaxTime != want {
		t.Errorf("expected max time %d, got %d", want, tx.MaxTime)
	}
}

func TestBuildRejectsInvalidAccount(t *testing.T) {
	builder := New("")
	entry, _ := notecodec.Encode("n", "v")
	_, err := builder.Build(horizon.Snapshot{AccountID: "not-an-account", Sequence: 1}, entry)
	if !errors.HasCode(err, errors.CodeAccountIDInvalid) {
		t.Fatalf("expected ACCOUNT_ID_INVALID, got %v", err)
	}
}

func TestSignAndVerify(t *testing.T) {
	builder := New(TestnetPassphrase)
	signer := testSigner(t)

	entry, _ := notecodec.Encode("note_1", "hello")
	tx, err := builder.Build(testSnapshot(t, 41), entry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	envelope, err := builder.Sign(context.Background(), tx, signer)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if envelope.SignerKey != signer.AccountID() {
		t.Errorf("expected signer key %q, got %q", signer.AccountID(), envelope.SignerKey)
	}
	if !builder.Verify(envelope) {
		t.Error("expected signature to verify")
	}

	// A different network must reject the same envelope.
	other := New("Public Global Stellar Network ; September 2015")
	if other.Verify(envelope) {
		t.Error("expected verification to fail on a different network")
	}

	// Tampering with the operation must break the signature.
	tampered := envelope
	tampered.Tx.Entry.Name = "note_x"
	if builder.Verify(tampered) {
		t.Error("expected verification to fail after tampering")
	}
}

func TestEnvelopeBase64IsDecodable(t *testing.T) {
	builder := New("")
	entry, _ := notecodec.EncodeDeletion("note_1")
	tx, err := builder.Build(testSnapshot(t, 9), entry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	envelope, err := builder.Sign(context.Background(), tx, testSigner(t))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Base64())
	if err != nil {
		t.Fatalf("envelope base64 does not decode: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty envelope")
	}
	if envelope.Hash() == "" {
		t.Fatal("expected non-empty envelope hash")
	}
}

func TestParseEnvelopeRoundTrip(t *testing.T) {
	builder := New("")
	signer := testSigner(t)

	entry, _ := notecodec.Encode("note_1", "hello")
	tx, err := builder.Build(testSnapshot(t, 5), entry)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	envelope, err := builder.Sign(context.Background(), tx, signer)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := ParseEnvelope(envelope.Base64())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Tx.SourceAccount != tx.SourceAccount {
		t.Errorf("source mismatch: %q vs %q", parsed.Tx.SourceAccount, tx.SourceAccount)
	}
	if parsed.Tx.Sequence != tx.Sequence {
		t.Errorf("sequence mismatch: %d vs %d", parsed.Tx.Sequence, tx.Sequence)
	}
	if parsed.Tx.Entry.Name != "note_1" || string(parsed.Tx.Entry.Value) != "hello" {
		t.Errorf("entry mismatch: %+v", parsed.Tx.Entry)
	}
	if parsed.Tx.Entry.Delete() {
		t.Error("write entry parsed as deletion")
	}
	if !builder.Verify(parsed) {
		t.Error("parsed envelope signature must verify")
	}

	deletion, _ := notecodec.EncodeDeletion("note_1")
	txDelete, err := builder.Build(testSnapshot(t, 5), deletion)
	if err != nil {
		t.Fatalf("build deletion: %v", err)
	}
	envDelete, err := builder.Sign(context.Background(), txDelete, signer)
	if err != nil {
		t.Fatalf("sign deletion: %v", err)
	}
	parsedDelete, err := ParseEnvelope(envDelete.Base64())
	if err != nil {
		t.Fatalf("parse deletion: %v", err)
	}
	if !parsedDelete.Tx.Entry.Delete() {
		t.Error("deletion entry lost its null value in transit")
	}
}

func TestParseEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := ParseEnvelope("!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := ParseEnvelope(base64.StdEncoding.EncodeToString([]byte{1, 2})); err == nil {
		t.Error("expected error for truncated envelope")
	}
	if _, err := ParseEnvelope(base64.StdEncoding.EncodeToString([]byte{99})); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestDeletionPacksDistinctFromEmptyWrite(t *testing.T) {
	builder := New("")
	snapshot := testSnapshot(t, 3)

	deletion, _ := notecodec.EncodeDeletion("note")
	emptyWrite, _ := notecodec.Encode("note", "")

	txDelete, err := builder.Build(snapshot, deletion)
	if err != nil {
		t.Fatalf("build delete: %v", err)
	}
	txWrite, err := builder.Build(snapshot, emptyWrite)
	if err != nil {
		t.Fatalf("build write: %v", err)
	}

	if bytes.Equal(txDelete.pack(), txWrite.pack()) {
		t.Error("deletion and empty write must pack differently")
	}
}

type fakeCollaborator struct {
	signature []byte
	err       error
	gotKey    string
}

func (f *fakeCollaborator) SignPayload(_ context.Context, accountID string, _ []byte) ([]byte, error) {
	f.gotKey = accountID
	return f.signature, f.err
}

func TestCollaboratorSigner(t *testing.T) {
	accountID := EncodeAccountID(bytes.Repeat([]byte{7}, 32))

	t.Run("signs via collaborator", func(t *testing.T) {
		collaborator := &fakeCollaborator{signature: []byte("sig")}
		signer, err := NewCollaboratorSigner(accountID, collaborator)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		signature, err := signer.Sign(context.Background(), []byte("payload"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(signature) != "sig" {
			t.Errorf("unexpected signature %q", signature)
		}
		if collaborator.gotKey != accountID {
			t.Errorf("expected collaborator to receive %q, got %q", accountID, collaborator.gotKey)
		}
	})

	t.Run("user declined", func(t *testing.T) {
		signer, err := NewCollaboratorSigner(accountID, &fakeCollaborator{err: Declined()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = signer.Sign(context.Background(), []byte("payload"))
		if !errors.HasCode(err, errors.CodeSigningDeclined) {
			t.Fatalf("expected SIGNING_DECLINED, got %v", err)
		}
	})

	t.Run("rejects invalid account", func(t *testing.T) {
		if _, err := NewCollaboratorSigner("bogus", &fakeCollaborator{}); !errors.HasCode(err, errors.CodeAccountIDInvalid) {
			t.Fatalf("expected ACCOUNT_ID_INVALID, got %v", err)
		}
	})
}

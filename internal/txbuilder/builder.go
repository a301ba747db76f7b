// Package txbuilder constructs and signs single-operation transaction
// envelopes. Construction is pure: every envelope is built fresh from an
// account snapshot and never reused after submission.
package txbuilder

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/louisbranch/stellar-notepad/internal/horizon"
	"github.com/louisbranch/stellar-notepad/internal/notecodec"
)

const (
	// BaseFee is the fee in stroops for a single-operation transaction.
	BaseFee = 100
	// ValidityWindow bounds how long a signed envelope may linger before the
	// ledger refuses it.
	ValidityWindow = 30 * time.Second

	// TestnetPassphrase identifies the public test network.
	TestnetPassphrase = "Test SDF Network ; September 2015"

	envelopeVersion = 1
)

// Transaction is an unsigned single-operation transaction.
type Transaction struct {
	SourceAccount string
	Sequence      int64
	Fee           int64
	MinTime       int64 // unix seconds, inclusive
	MaxTime       int64 // unix seconds, inclusive
	Entry         notecodec.DataEntry
}

// Envelope is a signed transaction ready for submission. It is single-use:
// submitting it consumes the sequence number whatever the outcome.
type Envelope struct {
	Tx        Transaction
	SignerKey string
	Signature []byte
}

// Builder builds and signs envelopes for one network.
type Builder struct {
	networkID [32]byte
	now       func() time.Time
}

// New creates a builder for the network identified by its passphrase. An
// empty passphrase targets the public test network.
func New(networkPassphrase string) *Builder {
	if networkPassphrase == "" {
		networkPassphrase = TestnetPassphrase
	}
	return &Builder{
		networkID: sha256.Sum256([]byte(networkPassphrase)),
		now:       time.Now,
	}
}

// Build constructs an unsigned transaction from an account snapshot and a
// data entry. The sequence consumes snapshot.Sequence + 1, so the snapshot
// must be fetched under the account's mutation gate.
func (b *Builder) Build(snapshot horizon.Snapshot, entry notecodec.DataEntry) (Transaction, error) {
	if err := CheckAccountID(snapshot.AccountID); err != nil {
		return Transaction{}, err
	}
	now := b.now().UTC()
	return Transaction{
		SourceAccount: snapshot.AccountID,
		Sequence:      snapshot.Sequence + 1,
		Fee:           BaseFee,
		MinTime:       now.Unix(),
		MaxTime:       now.Add(ValidityWindow).Unix(),
		Entry:         entry,
	}, nil
}

// Sign produces a signed envelope using the configured signing strategy.
func (b *Builder) Sign(ctx context.Context, tx Transaction, signer Signer) (Envelope, error) {
	if signer == nil {
		return Envelope{}, fmt.Errorf("signer is required")
	}
	payload := b.SignaturePayload(tx)
	signature, err := signer.Sign(ctx, payload[:])
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Tx:        tx,
		SignerKey: signer.AccountID(),
		Signature: signature,
	}, nil
}

// SignaturePayload is the hash a signer commits to: the network identifier
// followed by the packed transaction, so an envelope cannot replay across
// networks.
func (b *Builder) SignaturePayload(tx Transaction) [32]byte {
	h := sha256.New()
	h.Write(b.networkID[:])
	h.Write(tx.pack())
	var payload [32]byte
	copy(payload[:], h.Sum(nil))
	return payload
}

// Verify checks an envelope's signature against its signer key.
func (b *Builder) Verify(envelope Envelope) bool {
	publicKey, err := DecodeAccountID(envelope.SignerKey)
	if err != nil {
		return false
	}
	payload := b.SignaturePayload(envelope.Tx)
	return ed25519.Verify(publicKey, payload[:], envelope.Signature)
}

// pack serializes the transaction into its deterministic wire form:
// big-endian integers and length-prefixed byte fields.
func (tx Transaction) pack() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, envelopeVersion)
	buf = packString(buf, tx.SourceAccount)
	buf = binary.BigEndian.AppendUint64(buf, uint64(tx.Sequence))
	buf = binary.BigEndian.AppendUint64(buf, uint64(tx.Fee))
	buf = binary.BigEndian.AppendUint64(buf, uint64(tx.MinTime))
	buf = binary.BigEndian.AppendUint64(buf, uint64(tx.MaxTime))
	buf = packString(buf, tx.Entry.Name)
	if tx.Entry.Delete() {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = packBytes(buf, tx.Entry.Value)
	}
	return buf
}

// Base64 renders the signed envelope in its transport form.
func (e Envelope) Base64() string {
	buf := e.Tx.pack()
	buf = packString(buf, e.SignerKey)
	buf = packBytes(buf, e.Signature)
	return base64.StdEncoding.EncodeToString(buf)
}

// Hash identifies the envelope's transaction for journaling before the
// gateway reports its own confirmation id.
func (e Envelope) Hash() string {
	sum := sha256.Sum256(e.Tx.pack())
	return fmt.Sprintf("%x", sum)
}

// ParseEnvelope decodes a transport-form envelope back into its parts.
func ParseEnvelope(envelopeBase64 string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(envelopeBase64)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	r := &reader{buf: raw}
	var tx Transaction
	version := r.byte()
	if version != envelopeVersion {
		return Envelope{}, fmt.Errorf("envelope version %d is not supported", version)
	}
	tx.SourceAccount = r.string()
	tx.Sequence = int64(r.uint64())
	tx.Fee = int64(r.uint64())
	tx.MinTime = int64(r.uint64())
	tx.MaxTime = int64(r.uint64())
	tx.Entry.Name = r.string()
	if r.byte() == 1 {
		tx.Entry.Value = r.bytes()
		if tx.Entry.Value == nil {
			tx.Entry.Value = []byte{}
		}
	}
	envelope := Envelope{Tx: tx}
	envelope.SignerKey = r.string()
	envelope.Signature = r.bytes()
	if r.err != nil {
		return Envelope{}, fmt.Errorf("unpack envelope: %w", r.err)
	}
	return envelope, nil
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("truncated at offset %d", r.off)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) bytes() []byte {
	lengthBytes := r.take(2)
	if lengthBytes == nil {
		return nil
	}
	return r.take(int(binary.BigEndian.Uint16(lengthBytes)))
}

func (r *reader) string() string {
	return string(r.bytes())
}

func packString(buf []byte, s string) []byte {
	return packBytes(buf, []byte(s))
}

func packBytes(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(b)))
	return append(buf, b...)
}

package txbuilder

import (
	"encoding/base32"
	"fmt"

	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
)

// Version bytes for the checksummed text encoding of keys. Account
// identifiers render with a leading G, secret seeds with a leading S.
const (
	versionAccountID byte = 6 << 3
	versionSeed      byte = 18 << 3
)

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeAccountID renders a 32-byte public key as a checksummed account
// identifier.
func EncodeAccountID(publicKey []byte) string {
	return encodeStrkey(versionAccountID, publicKey)
}

// DecodeAccountID parses and validates a checksummed account identifier,
// returning the raw 32-byte public key.
func DecodeAccountID(accountID string) ([]byte, error) {
	raw, err := decodeStrkey(versionAccountID, accountID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeAccountIDInvalid,
			fmt.Sprintf("account identity %q is not a valid ledger account id", accountID), err)
	}
	return raw, nil
}

// CheckAccountID validates a checksummed account identifier.
func CheckAccountID(accountID string) error {
	_, err := DecodeAccountID(accountID)
	return err
}

// EncodeSeed renders a 32-byte signing seed in checksummed text form.
func EncodeSeed(seed []byte) string {
	return encodeStrkey(versionSeed, seed)
}

// DecodeSeed parses a checksummed secret seed.
func DecodeSeed(encoded string) ([]byte, error) {
	return decodeStrkey(versionSeed, encoded)
}

func encodeStrkey(version byte, payload []byte) string {
	raw := make([]byte, 0, len(payload)+3)
	raw = append(raw, version)
	raw = append(raw, payload...)
	checksum := crc16(raw)
	raw = append(raw, byte(checksum&0xff), byte(checksum>>8))
	return strkeyEncoding.EncodeToString(raw)
}

func decodeStrkey(version byte, encoded string) ([]byte, error) {
	raw, err := strkeyEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base32: %w", err)
	}
	if len(raw) != 35 {
		return nil, fmt.Errorf("decoded key is %d bytes, want 35", len(raw))
	}
	if raw[0] != version {
		return nil, fmt.Errorf("version byte 0x%02x does not match expected 0x%02x", raw[0], version)
	}
	payload := raw[:33]
	checksum := uint16(raw[33]) | uint16(raw[34])<<8
	if crc16(payload) != checksum {
		return nil, fmt.Errorf("checksum mismatch")
	}
	return raw[1:33], nil
}

// crc16 implements the XModem CRC-16 (poly 0x1021, zero init) used by the
// key text encoding.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

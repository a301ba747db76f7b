// Package notecodec translates logical notes to and from the ledger's
// data-entry representation: a bounded-length name mapped to a bounded-length
// binary value, carried over the wire as base64.
package notecodec

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/louisbranch/stellar-notepad/internal/platform/errors"
)

const (
	// MaxNameBytes is the ledger bound on a data-entry name.
	MaxNameBytes = 64
	// MaxValueBytes is the ledger bound on a data-entry value.
	MaxValueBytes = 64
)

// DataEntry is the ledger representation of a note. A nil Value marks a
// deletion: the transaction that carries it removes the entry.
type DataEntry struct {
	Name  string
	Value []byte
}

// Delete reports whether the entry deletes its name.
func (e DataEntry) Delete() bool {
	return e.Value == nil
}

// Entry is a decoded data entry. Exactly one of Text or Raw is meaningful: a
// value that decodes as UTF-8 text is Readable, anything else is surfaced
// with its raw bytes rather than dropped.
type Entry struct {
	Name     string
	Readable bool
	Text     string
	Raw      []byte
}

// Encode validates and converts a logical note into a data entry.
func Encode(name, content string) (DataEntry, error) {
	if err := CheckName(name); err != nil {
		return DataEntry{}, err
	}
	value := []byte(content)
	if len(value) > MaxValueBytes {
		return DataEntry{}, errors.New(errors.CodeNoteContentTooLong,
			fmt.Sprintf("note content is %d bytes, the ledger limit is %d", len(value), MaxValueBytes))
	}
	if value == nil {
		value = []byte{}
	}
	return DataEntry{Name: name, Value: value}, nil
}

// EncodeDeletion converts a note name into a deletion entry. Only the name is
// checked; a deletion writes no value.
func EncodeDeletion(name string) (DataEntry, error) {
	if err := CheckName(name); err != nil {
		return DataEntry{}, err
	}
	return DataEntry{Name: name}, nil
}

// CheckName validates a note name against the ledger bounds.
func CheckName(name string) error {
	if name == "" {
		return errors.New(errors.CodeNoteNameEmpty, "note name is required")
	}
	if len(name) > MaxNameBytes {
		return errors.New(errors.CodeNoteNameTooLong,
			fmt.Sprintf("note name is %d bytes, the ledger limit is %d", len(name), MaxNameBytes))
	}
	return nil
}

// Decode converts a transport (base64) data-entry value into an Entry. Values
// that do not decode as UTF-8 text come back with Readable=false and the raw
// bytes; invalid base64 keeps the transport bytes so no entry is hidden.
func Decode(name, transportValue string) Entry {
	raw, err := base64.StdEncoding.DecodeString(transportValue)
	if err != nil {
		return Entry{Name: name, Raw: []byte(transportValue)}
	}
	if !utf8.Valid(raw) {
		return Entry{Name: name, Raw: raw}
	}
	return Entry{Name: name, Readable: true, Text: string(raw)}
}

// Transport returns the base64 wire form of an entry value.
func Transport(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

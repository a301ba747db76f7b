// Package errors provides structured error handling for ledger operations.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeAccountIDInvalid   Code = "ACCOUNT_ID_INVALID"
	CodeNoteNameEmpty      Code = "NOTE_NAME_EMPTY"
	CodeNoteNameTooLong    Code = "NOTE_NAME_TOO_LONG"
	CodeNoteContentTooLong Code = "NOTE_CONTENT_TOO_LONG"

	// Gateway errors
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeOrderingConflict   Code = "ORDERING_CONFLICT"
	CodeRejectedByLedger   Code = "REJECTED_BY_LEDGER"
	CodeGatewayUnavailable Code = "GATEWAY_UNAVAILABLE"

	// Signing errors
	CodeSignerMissing   Code = "SIGNER_MISSING"
	CodeSigningDeclined Code = "SIGNING_DECLINED"
)

// Retryable reports whether an operation that failed with this code may be
// retried with fresh state. Only the read path consults this: a failed submit
// is never retried because ledger-side success is not observable across a
// transport failure.
func (c Code) Retryable() bool {
	return c == CodeGatewayUnavailable
}

// Validation reports whether the code describes caller input that cannot
// succeed without modification.
func (c Code) Validation() bool {
	switch c {
	case CodeAccountIDInvalid, CodeNoteNameEmpty, CodeNoteNameTooLong, CodeNoteContentTooLong:
		return true
	}
	return false
}

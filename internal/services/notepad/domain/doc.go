// Package domain defines the notepad MCP tools and their handlers: reading
// the notes stored in a ledger account's data entries, and writing or
// deleting a note through a signed transaction serialized per account.
package domain

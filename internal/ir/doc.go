// Package ir provides canonical JSON serialization and content-addressed
// identity for harness results and reports.
//
// ir imports nothing internal. Callers convert their types to plain Go
// values (strings, integers, bools, slices, maps) before hashing, so the
// encoding rules live in one place:
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - Strings NFC normalized, no HTML escaping
//   - No floats and no null
package ir

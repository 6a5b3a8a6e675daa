// Package sanitizer normalizes free-form resident input before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result as applying
// them once. Invalid input is never an error here; it is left for the validator.
//
// Normalization includes:
//   - Resident names: trim, collapse inner whitespace, drop control characters
//   - Apartment labels: as names, then upper-cased ("4b" becomes "4B")
//   - Identifiers: trimmed only
package sanitizer

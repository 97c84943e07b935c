// Package record defines the time-stamped record ingested into tally and the
// canonical encoding used to give each record a content-addressed identity.
//
// This package imports nothing internal. Every other package that deals with
// records or digests builds on it.
//
// Key constraints:
//   - Record IDs are SHA-256 digests of canonical JSON with a domain prefix
//   - Times are normalised to UTC milliseconds before hashing
//   - Measures must be finite; NaN and ±Inf are rejected
//   - Dataset names and attribute keys are lower snake_case identifiers
package record

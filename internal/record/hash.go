package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainRecord    = "tally/record/v1"
	DomainAPIKey    = "tally/apikey/v1"
	DomainDashboard = "tally/dashboard/v1"
)

// Digest computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null separator prevents domain/data boundary ambiguity.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the content address of a record.
//
// ID and Seq are excluded: the ID is what is being computed and Seq is
// assigned by the ingest writer, so re-ingesting the same observation yields
// the same ID regardless of when it arrives.
func RecordID(r Record) (string, error) {
	obj := map[string]any{
		"dataset":  r.Dataset,
		"time_ms":  r.Time.UTC().UnixMilli(),
		"measures": r.Measures,
	}
	if len(r.Dimensions) > 0 {
		obj["dimensions"] = r.Dimensions
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return Digest(DomainRecord, canonical), nil
}

// MustRecordID is like RecordID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordID(r Record) string {
	id, err := RecordID(r)
	if err != nil {
		panic(err)
	}
	return id
}

// DigestValue canonically encodes v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, canonical), nil
}

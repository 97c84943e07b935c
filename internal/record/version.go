package record

// Version constants for the record encoding and the service.
const (
	// EncodingVersion is bumped whenever the canonical hash input changes.
	EncodingVersion = "1"

	// Version is the tally release reported by the CLI and /v1/ping.
	Version = "0.3.0"
)

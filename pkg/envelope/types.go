// Package envelope implements the config envelope store: a
// canonical-CBOR record of the provenance and configuration bound to one
// provider op, written atomically with an optional backup ring and an
// adjacent per-digest contract audit cache.
package envelope

// ConfigEnvelope captures the provenance and configuration bound to one
// provider operation. Two envelopes with equal fields except UpdatedAt
// describe the same contract-compatible configuration. UpdatedAt is
// stored as an RFC3339Nano string rather than a native time.Time so the
// canonical-CBOR encoding needs no tag-mode configuration for timestamps.
type ConfigEnvelope struct {
	ComponentID    string `cbor:"component_id"`
	ABIVersion     string `cbor:"abi_version"`
	ResolvedDigest string `cbor:"resolved_digest"`
	DescribeHash   string `cbor:"describe_hash"`
	OperationID    string `cbor:"operation_id"`
	Config         []byte `cbor:"config"` // JCS-canonicalized JSON
	SchemaHash     string `cbor:"schema_hash,omitempty"`
	UpdatedAt      string `cbor:"updated_at"`
}

// Equal reports whether two envelopes describe the same contract-compatible
// configuration, ignoring UpdatedAt.
func (e ConfigEnvelope) Equal(o ConfigEnvelope) bool {
	return e.ComponentID == o.ComponentID &&
		e.ABIVersion == o.ABIVersion &&
		e.ResolvedDigest == o.ResolvedDigest &&
		e.DescribeHash == o.DescribeHash &&
		e.OperationID == o.OperationID &&
		e.SchemaHash == o.SchemaHash &&
		string(e.Config) == string(o.Config)
}

// ContractDriftError is returned when a stored envelope's describe_hash no
// longer matches the pack's freshly resolved describe_hash.
type ContractDriftError struct {
	StoredDescribeHash   string
	ResolvedDescribeHash string
	ComponentID          string
}

func (e *ContractDriftError) Error() string {
	return "envelope: OP_CONTRACT_DRIFT for " + e.ComponentID +
		": stored=" + e.StoredDescribeHash + " resolved=" + e.ResolvedDescribeHash
}

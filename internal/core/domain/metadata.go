package domain

// Metadata is stored next to every artifact blob. It carries what a later
// invocation needs without rebuilding: the ABI and the usage record.
type Metadata struct {
	Unit          UnitID       `cbor:"unit"`
	RuleKey       Key          `cbor:"rule_key"`
	InputBasedKey Key          `cbor:"input_based_key"`
	DepFileKey    Key          `cbor:"dep_file_key"`
	Abi           Key          `cbor:"abi"`
	OutputDigest  Key          `cbor:"output_digest"`
	Usage         *UsageRecord `cbor:"usage,omitempty"`
	Outcome       BuildOutcome `cbor:"outcome"`
	BuiltAt       int64        `cbor:"built_at"`
}

package domain

import "time"

// BuildOutcome is the terminal state of a unit in one invocation.
type BuildOutcome string

const (
	// OutcomeBuiltLocally means the compiler ran and succeeded.
	OutcomeBuiltLocally BuildOutcome = "BuiltLocally"
	// OutcomeFetchedExactMatch means the output was found under the RuleKey.
	OutcomeFetchedExactMatch BuildOutcome = "FetchedExactMatch"
	// OutcomeFetchedInputBasedMatch means the output was found under the InputBasedRuleKey.
	OutcomeFetchedInputBasedMatch BuildOutcome = "FetchedInputBasedMatch"
	// OutcomeFetchedManifestMatch means a manifest entry resolved the output.
	OutcomeFetchedManifestMatch BuildOutcome = "FetchedManifestMatch"
	// OutcomeFailed means the unit or one of its dependencies failed.
	OutcomeFailed BuildOutcome = "Failed"
)

// Succeeded reports whether the outcome produced an output.
func (o BuildOutcome) Succeeded() bool {
	return o != OutcomeFailed && o != ""
}

// Fetched reports whether the output came from the cache.
func (o BuildOutcome) Fetched() bool {
	switch o {
	case OutcomeFetchedExactMatch, OutcomeFetchedInputBasedMatch, OutcomeFetchedManifestMatch:
		return true
	default:
		return false
	}
}

// Tier is a resolution strategy, in the order the engine attempts them.
type Tier string

const (
	// TierExact queries by RuleKey.
	TierExact Tier = "exact"
	// TierInputBased queries by InputBasedRuleKey.
	TierInputBased Tier = "input_based"
	// TierManifest resolves through the unit's manifest.
	TierManifest Tier = "manifest"
	// TierBuild runs the compiler.
	TierBuild Tier = "build"
	// TierNone marks units that never attempted a tier.
	TierNone Tier = "none"
)

// OutcomeRecord is emitted once per unit per invocation.
type OutcomeRecord struct {
	Unit    UnitID        `json:"unit"`
	Outcome BuildOutcome  `json:"outcome"`
	Tier    Tier          `json:"tier"`
	Elapsed time.Duration `json:"elapsed"`
	RuleKey Key           `json:"rule_key"`
	// Cause is the failure message for failed units.
	Cause string `json:"cause,omitempty"`
}

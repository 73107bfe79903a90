package constants

// TerminationReason is the canonical outcome of a validation loop.
type TerminationReason string

// Stable values (these exact strings appear in reports and the audit store).
const (
	ReasonConverged           TerminationReason = "CONVERGED"            // accuracy estimate reached the target
	ReasonStable              TerminationReason = "STABLE"               // a round proposed no corrections
	ReasonRoundsExhausted     TerminationReason = "ROUNDS_EXHAUSTED"     // hit the round budget with issues remaining
	ReasonParseFailure        TerminationReason = "PARSE_FAILURE"        // model output unparseable twice in a row
	ReasonProviderUnavailable TerminationReason = "PROVIDER_UNAVAILABLE" // vision call failed after retries
	ReasonCancelled           TerminationReason = "CANCELLED"            // caller cancelled between rounds
)

// Degraded reports whether the loop stopped short of a clean outcome.
// Converged and Stable are clean; everything else returned the best-known
// record without finishing.
func (r TerminationReason) Degraded() bool {
	return r != ReasonConverged && r != ReasonStable
}

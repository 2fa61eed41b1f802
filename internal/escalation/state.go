// Package escalation turns ranked recommendations into emitted decisions.
// It applies the threshold policy, consults the explainer once under a
// deadline, and appends the immutable decision record to the journal.
package escalation

// CycleState tracks one decision cycle from trigger to emission. Transitions
// are logged; every cycle terminates in StateEmitted.
type CycleState string

const (
	StateTriggered       CycleState = "TRIGGERED"
	StateScored          CycleState = "SCORED"
	StateThresholded     CycleState = "THRESHOLDED"
	StateExplained       CycleState = "EXPLAINED"
	StateExplainTimedOut CycleState = "EXPLAIN_TIMED_OUT"
	StateEmitted         CycleState = "EMITTED"
)

package explain

import (
	"fmt"
	"strings"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Template builds the deterministic fallback explanation from the decision
// context. It names the action, the dominant criterion and the concrete
// numbers, so the text stands on its own in the journal.
func Template(req Request) string {
	var b strings.Builder

	subject := req.PatientName
	if subject == "" {
		subject = "Patient " + req.PatientID
	}

	switch req.Action {
	case hospital.ActionEscalate:
		if req.TargetUnit != "" {
			fmt.Fprintf(&b, "Escalate %s to %s.", subject, req.TargetUnit)
		} else {
			fmt.Fprintf(&b, "Escalate %s for immediate review; no unit can accept them.", subject)
		}
	case hospital.ActionAdmit:
		fmt.Fprintf(&b, "Admit %s to %s.", subject, req.TargetUnit)
	case hospital.ActionTransfer:
		fmt.Fprintf(&b, "Transfer %s to %s.", subject, req.TargetUnit)
	case hospital.ActionObserve:
		fmt.Fprintf(&b, "Keep %s under close observation.", subject)
	case hospital.ActionDelay:
		fmt.Fprintf(&b, "Defer placement for %s pending capacity.", subject)
	default:
		fmt.Fprintf(&b, "Review %s.", subject)
	}

	fmt.Fprintf(&b, " Risk score %.0f/100, trajectory %s", req.RiskScore, req.Trajectory)
	if req.WaitMinutes > 0 {
		fmt.Fprintf(&b, ", waiting %d min", req.WaitMinutes)
	}
	b.WriteString(".")

	if req.Scores != nil {
		fmt.Fprintf(&b, " Driven by %s (safety %.2f, urgency %.2f, capacity fit %.2f, resource impact %.2f; weighted total %.2f).",
			dominantCriterion(req.Scores),
			req.Scores.Safety, req.Scores.Urgency, req.Scores.CapacityFit,
			req.Scores.ResourceImpact, req.Scores.WeightedTotal)
	} else if req.Action == hospital.ActionEscalate {
		b.WriteString(" All candidate units are at capacity.")
	}

	return b.String()
}

// dominantCriterion names the criterion contributing most to the total, with
// the resource criterion read in its benefit form.
func dominantCriterion(s *hospital.MCDAScoreSet) string {
	name, best := "patient safety", s.Safety
	if s.Urgency > best {
		name, best = "urgency", s.Urgency
	}
	if s.CapacityFit > best {
		name, best = "capacity fit", s.CapacityFit
	}
	if 1-s.ResourceImpact > best {
		name = "low resource impact"
	}
	return name
}

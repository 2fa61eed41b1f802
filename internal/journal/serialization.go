package journal

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// DecisionToHash converts a Decision to a flat map for Redis HSET. Scores are
// stored as one JSON field; everything else is a scalar.
func DecisionToHash(d *hospital.Decision) (map[string]any, error) {
	hash := map[string]any{
		"id":             d.ID,
		"patient_id":     d.PatientID,
		"action":         string(d.Action),
		"target_unit_id": d.TargetUnitID,
		"confidence":     strconv.FormatFloat(d.Confidence, 'f', -1, 64),
		"reasoning":      d.Reasoning,
		"stale":          strconv.FormatBool(d.Stale),
		"created_at_ms":  strconv.FormatInt(d.CreatedAtMs, 10),
	}

	if d.Scores != nil {
		scoresJSON, err := json.Marshal(d.Scores)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal scores: %w", err)
		}
		hash["scores"] = string(scoresJSON)
	}

	return hash, nil
}

// HashToDecision converts a Redis hash back to a Decision.
func HashToDecision(hash map[string]string) (*hospital.Decision, error) {
	d := &hospital.Decision{
		ID:           hash["id"],
		PatientID:    hash["patient_id"],
		Action:       hospital.Action(hash["action"]),
		TargetUnitID: hash["target_unit_id"],
		Reasoning:    hash["reasoning"],
	}

	if v, ok := hash["confidence"]; ok && v != "" {
		conf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence %q: %w", v, err)
		}
		d.Confidence = conf
	}
	if v, ok := hash["stale"]; ok && v != "" {
		stale, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid stale flag %q: %w", v, err)
		}
		d.Stale = stale
	}
	if v, ok := hash["created_at_ms"]; ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at_ms %q: %w", v, err)
		}
		d.CreatedAtMs = ms
	}
	if v, ok := hash["scores"]; ok && v != "" {
		var scores hospital.MCDAScoreSet
		if err := json.Unmarshal([]byte(v), &scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
		}
		d.Scores = &scores
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decision in journal: %w", err)
	}
	return d, nil
}

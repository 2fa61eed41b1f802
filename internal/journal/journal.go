// Package journal persists the append-only decision log in Redis.
//
// Decisions are the system's durable output of record. Each decision is a
// hash at pulse:{instance}:decision:{id}; an index list preserves emission
// order and a per-patient list supports history lookups. Records are written
// once and never mutated.
package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Journal is an instance-scoped client for the decision log.
type Journal struct {
	rdb          *redis.Client
	instanceName string
}

// New creates a journal over an existing Redis connection.
func New(rdb *redis.Client, instanceName string) (*Journal, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Journal{rdb: rdb, instanceName: instanceName}, nil
}

// DecisionKey returns the Redis key for one decision.
// Pattern: pulse:{instance_name}:decision:{decision_id}
func DecisionKey(instanceName, decisionID string) string {
	return fmt.Sprintf("pulse:%s:decision:%s", instanceName, decisionID)
}

// IndexKey returns the Redis key of the emission-order index list.
// Pattern: pulse:{instance_name}:decisions
func IndexKey(instanceName string) string {
	return fmt.Sprintf("pulse:%s:decisions", instanceName)
}

// PatientIndexKey returns the Redis key of a patient's decision list.
// Pattern: pulse:{instance_name}:patient:{patient_id}:decisions
func PatientIndexKey(instanceName, patientID string) string {
	return fmt.Sprintf("pulse:%s:patient:%s:decisions", instanceName, patientID)
}

// Append writes a decision and indexes it. Validates before writing.
func (j *Journal) Append(ctx context.Context, d *hospital.Decision) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid decision: %w", err)
	}

	hash, err := DecisionToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize decision: %w", err)
	}

	key := DecisionKey(j.instanceName, d.ID)
	if err := j.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write decision: %w", err)
	}
	if err := j.rdb.RPush(ctx, IndexKey(j.instanceName), d.ID).Err(); err != nil {
		return fmt.Errorf("failed to index decision: %w", err)
	}
	if err := j.rdb.RPush(ctx, PatientIndexKey(j.instanceName, d.PatientID), d.ID).Err(); err != nil {
		return fmt.Errorf("failed to index decision for patient: %w", err)
	}
	return nil
}

// Get retrieves a decision by ID. Returns (nil, redis.Nil) if absent; use
// IsNotFound to check.
func (j *Journal) Get(ctx context.Context, decisionID string) (*hospital.Decision, error) {
	key := DecisionKey(j.instanceName, decisionID)
	hashData, err := j.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read decision: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}
	return HashToDecision(hashData)
}

// Recent returns up to n decisions, most recent first.
func (j *Journal) Recent(ctx context.Context, n int) ([]*hospital.Decision, error) {
	return j.tail(ctx, IndexKey(j.instanceName), n)
}

// ForPatient returns up to n of a patient's decisions, most recent first.
func (j *Journal) ForPatient(ctx context.Context, patientID string, n int) ([]*hospital.Decision, error) {
	return j.tail(ctx, PatientIndexKey(j.instanceName, patientID), n)
}

func (j *Journal) tail(ctx context.Context, indexKey string, n int) ([]*hospital.Decision, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := j.rdb.LRange(ctx, indexKey, int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read decision index: %w", err)
	}

	// LRange returns oldest first; reverse for most-recent-first.
	out := make([]*hospital.Decision, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		d, err := j.Get(ctx, ids[i])
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

package bus

import "fmt"

// Topic names
//
// Inbound topics carry collaborator events (hospital.InboundEvent payloads).
// Outbound topics carry agent output records as defined in pkg/hospital.

const (
	// Inbound
	TopicArrival   = "patient.arrival"
	TopicVitals    = "patient.vitals"
	TopicLabResult = "patient.lab"
	TopicDischarge = "patient.discharge"
	TopicTransfer  = "patient.transfer"
	TopicStaffing  = "unit.staffing"

	// Outbound
	TopicRiskUpdated    = "risk.updated"
	TopicCapacityUpdate = "capacity.updated"
	TopicRecommendation = "flow.recommendation"
	TopicDecisionMade   = "decision.made"
)

// TopicChannel returns the Redis Pub/Sub channel name for a topic.
// Pattern: pulse:{instance_name}:{topic}
func TopicChannel(instanceName, topic string) string {
	return fmt.Sprintf("pulse:%s:%s", instanceName, topic)
}

// Package hospital provides the shared domain types for the Pulse decision
// core: patients, units, vital signs, agent output records, and the inbound
// event payloads consumed from collaborators.
//
// Values crossing the event bus are treated as immutable; producers hand a
// payload to the bus and never touch it again, and consumers must not mutate
// what they receive. Mutable shared state lives only in the state store.
package hospital

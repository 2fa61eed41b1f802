// Package bus is the topic-based event broker connecting the Pulse agents.
//
// Transport is Redis Pub/Sub. Each topic maps to one channel namespaced by
// instance name, so multiple Pulse instances safely coexist on one Redis
// server. Delivery is at-most-once and FIFO within a topic; there is no
// persistence or replay — a subscriber that joins after an event was
// published never receives it.
//
// Every agent consumes its own Subscription in its own goroutine, so a slow
// or failing consumer never blocks the publisher or any other consumer.
package bus

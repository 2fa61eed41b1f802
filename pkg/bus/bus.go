package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Envelope wraps every payload crossing the bus. The payload is opaque JSON;
// consumers decode it into the type the topic is documented to carry.
type Envelope struct {
	ID           string          `json:"id"`
	Topic        string          `json:"topic"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload"`
}

// Validate checks if the Envelope has valid field values.
func (e *Envelope) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid envelope ID: not a valid UUID")
	}
	if e.Topic == "" {
		return fmt.Errorf("envelope topic cannot be empty")
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope payload cannot be empty")
	}
	return nil
}

// Decode unmarshals the envelope payload into T.
func Decode[T any](env *Envelope) (*T, error) {
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Topic, err)
	}
	return &v, nil
}

// Client provides instance-scoped publish/subscribe on the event bus.
// All channels are automatically namespaced with the instance name.
// The client is safe for concurrent use from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a bus client for the given instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// NewClientFromRedis wraps an existing Redis client. The caller retains
// ownership of rdb; Close on the returned Client closes it.
func NewClientFromRedis(rdb *redis.Client, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Client{rdb: rdb, instanceName: instanceName}, nil
}

// Redis exposes the underlying connection for components sharing it
// (the decision journal).
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// InstanceName returns the namespace this client publishes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish wraps payload in an Envelope and delivers it to every current
// subscriber of the topic. Publishing never fails because of a subscriber:
// consumers run on their own goroutines and decode errors stay on their side.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	env := Envelope{
		ID:           uuid.New().String(),
		Topic:        topic,
		OccurredAtMs: time.Now().UnixMilli(),
		Payload:      raw,
	}
	data, err := json.Marshal(&env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	channel := TopicChannel(c.instanceName, topic)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscription is an active subscription to one or more topics.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Envelope
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of envelopes. It is closed when the
// subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Envelope {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal:
// the offending message is skipped and the subscription continues.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer; safe to call multiple
// times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe starts delivering events published to any of the given topics,
// in publish order per topic. Events published before this call are never
// delivered.
//
// Events are delivered on a buffered channel (size 64). If the subscriber
// falls far behind, Redis Pub/Sub may drop messages (at-most-once delivery).
func (c *Client) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = TopicChannel(c.instanceName, t)
	}
	pubsub := c.rdb.Subscribe(ctx, channels...)

	eventsChan := make(chan *Envelope, 64)
	errorsChan := make(chan error, 16)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal envelope: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				if err := env.Validate(); err != nil {
					select {
					case errorsChan <- fmt.Errorf("dropping malformed envelope: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &env:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

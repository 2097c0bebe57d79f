package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Topics fanned out to the frontend realtime channel. Delivery is
// best-effort: observers that miss events re-fetch full state on reconnect.
const (
	TopicRequirementUpdated = "requirement.updated"
	TopicRequirementDeleted = "requirement.deleted"
	TopicPermitIssued       = "permit.issued"
	TopicPermitRevoked      = "permit.revoked"
)

// Publisher is the broadcast port. Implementations must not block the caller
// beyond a single round-trip and must not require acknowledgment.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// RedisPublisher fans events out over redis pub/sub; the frontend gateway
// subscribes to the per-topic channels and relays to connected clients.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "clearance"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("%s:%s", p.prefix, topic)
	return p.client.Publish(ctx, channel, body).Err()
}

// NopPublisher drops everything. Used when no redis address is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

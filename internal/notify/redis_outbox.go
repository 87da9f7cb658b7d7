// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/eventhub/eventauth/internal/auth"
)

// DefaultOutboxKey is the Redis list messages are pushed to when no key is configured.
const DefaultOutboxKey = "eventauth:notifications"

// envelope is the JSON document stored in the outbox list.
type envelope struct {
	auth.Message
	QueuedAt time.Time `json:"queuedAt"`
}

// RedisOutbox queues messages on a Redis list. Consumers pop from the
// right end, so delivery order is FIFO.
type RedisOutbox struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

// NewRedisOutbox creates a RedisOutbox pushing to key.
func NewRedisOutbox(client redis.UniversalClient, key string) (*RedisOutbox, error) {
	if client == nil {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultOutboxKey
	}
	return &RedisOutbox{client: client, key: key, now: time.Now}, nil
}

// Key returns the list key messages are pushed to.
func (o *RedisOutbox) Key() string {
	return o.key
}

// Send implements auth.NotificationChannel.
func (o *RedisOutbox) Send(ctx context.Context, msg auth.Message) error {
	payload, err := json.Marshal(envelope{Message: msg, QueuedAt: o.now().UTC()})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").With("kind", string(msg.Kind)).Wrap(err)
	}
	if err := o.client.LPush(ctx, o.key, payload).Err(); err != nil {
		return oops.Code("NOTIFY_ENQUEUE_FAILED").
			With("kind", string(msg.Kind)).
			With("key", o.key).
			Wrap(err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (o *RedisOutbox) Ping(ctx context.Context) error {
	if err := o.client.Ping(ctx).Err(); err != nil {
		return oops.Code("NOTIFY_UNAVAILABLE").With("key", o.key).Wrap(err)
	}
	return nil
}

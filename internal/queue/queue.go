// Package queue is a thin Redis Streams broker: JSON payloads published to
// named streams, consumed one at a time through a consumer group.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sitebot/sitebot/internal/config"
)

// payloadField is the single stream entry field carrying the JSON body.
const payloadField = "body"

// defaultBlock bounds how long one Receive blocks waiting for a message, so
// consumer loops can observe context cancellation.
const defaultBlock = 5 * time.Second

// Client wraps a Redis connection for publishing and consuming.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Publish appends the payload, JSON-encoded, to the stream.
func (c *Client) Publish(ctx context.Context, stream string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	err = c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: data},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Delivery is one consumed message awaiting acknowledgement.
type Delivery struct {
	ID   string
	Body []byte
}

// Consumer reads a stream through a consumer group, one message at a time.
// Each Consumer gets a unique name within its group.
type Consumer struct {
	rdb   *redis.Client
	group string
	name  string
}

// NewConsumer builds a consumer for the given group.
func (c *Client) NewConsumer(group string) *Consumer {
	return &Consumer{
		rdb:   c.rdb,
		group: group,
		name:  fmt.Sprintf("%s-%s", group, uuid.NewString()),
	}
}

// EnsureGroup creates the consumer group on the stream if it does not exist,
// creating the stream as needed. The group starts at the beginning of the
// stream so messages published before the first worker are not lost.
func (c *Consumer) EnsureGroup(ctx context.Context, stream string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create %s: %w", stream, err)
	}
	return nil
}

// Receive blocks for up to a few seconds waiting for the next message on the
// stream. Returns nil when no message arrived in time.
func (c *Consumer) Receive(ctx context.Context, stream string) (*Delivery, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    defaultBlock,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", stream, err)
	}

	for _, st := range streams {
		for _, msg := range st.Messages {
			raw, ok := msg.Values[payloadField]
			if !ok {
				// Entry without a body cannot be processed; drop it.
				_ = c.Ack(ctx, stream, msg.ID)
				continue
			}
			var body []byte
			switch v := raw.(type) {
			case string:
				body = []byte(v)
			case []byte:
				body = v
			default:
				_ = c.Ack(ctx, stream, msg.ID)
				continue
			}
			return &Delivery{ID: msg.ID, Body: body}, nil
		}
	}
	return nil, nil
}

// Ack acknowledges a processed message.
func (c *Consumer) Ack(ctx context.Context, stream, id string) error {
	if err := c.rdb.XAck(ctx, stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", stream, err)
	}
	return nil
}

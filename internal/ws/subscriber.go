package ws

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Subscriber wraps Redis Pub/Sub: the API service publishes bid and
// close events per item, and every broadcast instance relays them to
// its own WebSocket clients.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewSubscriber creates a new Redis Pub/Sub subscriber
func NewSubscriber(addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{
		client: rdb,
	}, nil
}

// SubscribeToPattern subscribes to event channels by pattern.
// "bid_events:*" covers every item.
func (s *Subscriber) SubscribeToPattern(ctx context.Context, pattern string) error {
	s.pubsub = s.client.PSubscribe(ctx, pattern)
	return nil
}

// Message represents a parsed Pub/Sub message
type Message struct {
	ItemID  string
	Payload string // Raw JSON payload, forwarded to clients as-is
}

// Listen forwards Pub/Sub messages to messageChan until ctx is done.
// Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, messageChan chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			messageChan <- &Message{
				ItemID:  extractItemIDFromChannel(msg.Channel),
				Payload: msg.Payload,
			}
		}
	}
}

// extractItemIDFromChannel extracts item ID from a channel name like
// "bid_events:item123".
func extractItemIDFromChannel(channel string) string {
	if idx := strings.IndexByte(channel, ':'); idx >= 0 {
		return channel[idx+1:]
	}
	return ""
}

// Close closes the subscriber
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}

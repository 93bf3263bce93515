// Package queue wraps NATS JetStream for durable event archival.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName holds accepted-bid and auction-closed events until the
// archival worker persists them to PostgreSQL.
const StreamName = "AUCTION_EVENTS"

// Subjects covered by the stream.
const (
	BidSubjects    = "bid.events.*"
	ClosedSubjects = "auction.closed.*"
)

// JetStream publishes events to the archival stream with server
// acknowledgment (at-least-once semantics).
type JetStream struct {
	js jetstream.JetStream
}

// NewJetStream creates the JetStream context and ensures the archival
// stream exists.
func NewJetStream(natsConn *nats.Conn) (*JetStream, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Accepted bids and auction closes awaiting archival",
		Subjects:    []string{BidSubjects, ClosedSubjects},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &JetStream{js: js}, nil
}

// Publish sends an event and waits for the server acknowledgment, so
// the message is persisted before the call returns.
func (q *JetStream) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	return nil
}

// Consume attaches a durable consumer to the archival stream and calls
// handler for every message. The handler acks on success; JetStream
// redelivers unacked messages.
func (q *JetStream) Consume(ctx context.Context, durable string, handler func(msg jetstream.Msg)) (jetstream.ConsumeContext, error) {
	cons, err := q.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:        durable,
		AckPolicy:      jetstream.AckExplicitPolicy,
		FilterSubjects: []string{BidSubjects, ClosedSubjects},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	cc, err := cons.Consume(handler)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return cc, nil
}

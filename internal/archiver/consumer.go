// Package archiver drains the JetStream archival stream into
// PostgreSQL, turning the hot Redis bid state into a durable history.
package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/pgstore"
	"github.com/xfarydz/rydstore-backend/internal/queue"
)

// Consumer persists bid and close events to the database. Delivery is
// at-least-once; persistence is idempotent on event ids.
type Consumer struct {
	stream *queue.JetStream
	db     *pgstore.Client
	cc     jetstream.ConsumeContext
}

// NewConsumer creates a new archival consumer
func NewConsumer(stream *queue.JetStream, db *pgstore.Client) *Consumer {
	return &Consumer{
		stream: stream,
		db:     db,
	}
}

// Start begins consuming archival events. Returns once the durable
// consumer is attached; Stop tears it down.
func (c *Consumer) Start(ctx context.Context) error {
	cc, err := c.stream.Consume(ctx, "archiver", c.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to start archival consumer: %w", err)
	}
	c.cc = cc
	fmt.Println("Consuming archival events from JetStream")
	return nil
}

func (c *Consumer) handleMessage(msg jetstream.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subject := msg.Subject()
	var err error
	switch {
	case strings.HasPrefix(subject, "bid.events."):
		err = c.persistBidEvent(ctx, msg.Data())
	case strings.HasPrefix(subject, "auction.closed."):
		err = c.persistClosedEvent(ctx, msg.Data())
	default:
		fmt.Printf("Skipping unknown subject %s\n", subject)
	}

	if err != nil {
		// No ack: JetStream redelivers and the idempotent inserts make
		// the retry safe.
		fmt.Printf("Failed to persist event on %s: %v\n", subject, err)
		return
	}

	msg.Ack()
}

func (c *Consumer) persistBidEvent(ctx context.Context, data []byte) error {
	var event models.BidEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal bid event: %w", err)
	}

	if err := c.db.InsertBid(ctx, &event); err != nil {
		return err
	}
	if err := c.db.UpsertAuctionLeader(ctx, &event); err != nil {
		return err
	}

	fmt.Printf("Archived bid %s (item: %s, bidder: %s, amount: %.2f)\n",
		event.BidID, event.ItemID, event.BidderName, event.Amount)
	return nil
}

func (c *Consumer) persistClosedEvent(ctx context.Context, data []byte) error {
	var event models.AuctionClosedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal close event: %w", err)
	}

	if err := c.db.MarkAuctionClosed(ctx, &event); err != nil {
		return err
	}

	fmt.Printf("Archived close of item %s (final bid: %.2f, winner: %s)\n",
		event.ItemID, event.FinalBid, event.WinnerName)
	return nil
}

// Stop drains the consumer.
func (c *Consumer) Stop() {
	if c.cc != nil {
		c.cc.Stop()
	}
}

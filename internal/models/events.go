package models

import "time"

// BidEvent is published when a bid is accepted.
// It is sent to:
// 1. Redis Pub/Sub (for real-time WebSocket broadcast to item viewers)
// 2. NATS JetStream (for durable archival to PostgreSQL)
type BidEvent struct {
	EventID     string    `json:"event_id"`
	ItemID      string    `json:"item_id"`
	BidID       string    `json:"bid_id"`
	BidderName  string    `json:"bidder_name"`
	BidderEmail string    `json:"bidder_email"`
	Amount      float64   `json:"amount"`
	PreviousBid float64   `json:"previous_bid"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuctionClosedEvent is published when an item's end time passes and the
// closer (or a lazy close during bid evaluation) marks it sold out.
type AuctionClosedEvent struct {
	EventID     string    `json:"event_id"`
	ItemID      string    `json:"item_id"`
	FinalBid    float64   `json:"final_bid"`
	WinnerName  string    `json:"winner_name,omitempty"`
	WinnerEmail string    `json:"winner_email,omitempty"`
	ClosedAt    time.Time `json:"closed_at"`
}

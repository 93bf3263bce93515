// Package redisstore holds the live state of auction items and is the
// serialization point for bids: the precondition chain and the leader
// update run inside a single Lua script per item, so check-then-bid is
// one atomic operation and first writer wins.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

const itemKeyPrefix = "auction:"

// BidCode classifies the outcome of the atomic bid script. Kept in sync
// with the Lua script below.
type BidCode int64

const (
	BidAccepted BidCode = iota
	BidEnded
	BidNotStarted
	BidTooLow
	BidItemNotFound
)

// Client wraps the Redis client with auction-specific operations
type Client struct {
	client *redis.Client
	// Lua script for the atomic check-then-bid operation
	bidScript *redis.Script
	// Lua script for the idempotent close-if-due transition
	closeScript *redis.Script
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// The full precondition chain runs server-side in one script, with
	// `now` supplied by the API server. Client clocks are never trusted,
	// and an item whose end time has passed is lazily closed here, at
	// the same serialization point that accepts bids.
	bidScript := redis.NewScript(`
		-- KEYS[1]: auction:{itemID} (item state hash)
		-- ARGV[1]: now (epoch millis, server clock)
		-- ARGV[2]: bid amount
		-- ARGV[3]: bidder name
		-- ARGV[4]: bidder email
		-- ARGV[5]: minimum increment
		-- Returns {code, detail}; detail is the min acceptable amount for
		-- code 3, the previous leading bid for code 0, and 1 for code 1
		-- when this call performed the lazy close, as a string so Redis
		-- does not truncate fractional amounts.

		if redis.call('EXISTS', KEYS[1]) == 0 then
			return {4, '0'}
		end

		local f = redis.call('HMGET', KEYS[1],
			'base_price', 'current_bid', 'start_time', 'end_time', 'sold_out')
		local now = tonumber(ARGV[1])
		local end_time = tonumber(f[4]) or 0

		if tonumber(f[5]) == 1 then
			return {1, '0'}
		end
		if end_time > 0 and now >= end_time then
			redis.call('HSET', KEYS[1], 'sold_out', 1)
			return {1, '1'}
		end

		local start_time = tonumber(f[3]) or 0
		if start_time > 0 and now < start_time then
			return {2, '0'}
		end

		local leading = tonumber(f[2]) or tonumber(f[1]) or 0
		local min_acceptable = leading + tonumber(ARGV[5])
		if tonumber(ARGV[2]) < min_acceptable then
			return {3, tostring(min_acceptable)}
		end

		redis.call('HSET', KEYS[1],
			'current_bid', ARGV[2],
			'highest_bidder', ARGV[3],
			'bidder_email', ARGV[4],
			'updated_at', ARGV[1])
		return {0, tostring(leading)}
	`)

	closeScript := redis.NewScript(`
		-- KEYS[1]: auction:{itemID}
		-- ARGV[1]: now (epoch millis, server clock)
		-- Returns 1 when this call performed the close, 0 otherwise.

		if redis.call('EXISTS', KEYS[1]) == 0 then
			return 0
		end
		local f = redis.call('HMGET', KEYS[1], 'end_time', 'sold_out')
		local end_time = tonumber(f[1]) or 0
		if tonumber(f[2]) == 1 then
			return 0
		end
		if end_time == 0 or tonumber(ARGV[1]) < end_time then
			return 0
		end
		redis.call('HSET', KEYS[1], 'sold_out', 1)
		return 1
	`)

	return &Client{
		client:      rdb,
		bidScript:   bidScript,
		closeScript: closeScript,
	}, nil
}

// BidResult represents the outcome of an atomic bid attempt.
type BidResult struct {
	Code          BidCode
	PreviousBid   float64 // leading bid before acceptance
	MinAcceptable float64 // set when the bid was below minimum
	// ClosedNow is set with BidEnded when this bid performed the lazy
	// close, so the caller still announces the auction's end.
	ClosedNow bool
}

// PlaceBid atomically evaluates and, if acceptable, records a bid. The
// caller maps the result code onto its error taxonomy.
func (c *Client) PlaceBid(ctx context.Context, itemID string, bid *models.Bid, now time.Time, minIncrement float64) (*BidResult, error) {
	keys := []string{itemKey(itemID)}
	result, err := c.bidScript.Run(ctx, c.client, keys,
		now.UnixMilli(), bid.Amount, bid.BidderName, bid.BidderEmail, minIncrement).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to execute bid script: %w", err)
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return nil, fmt.Errorf("unexpected bid script result: %v", result)
	}
	code, ok := resultArray[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected bid script result code: %v", resultArray[0])
	}
	detail, err := parseScriptAmount(resultArray[1])
	if err != nil {
		return nil, err
	}

	switch BidCode(code) {
	case BidAccepted:
		return &BidResult{Code: BidAccepted, PreviousBid: detail}, nil
	case BidTooLow:
		return &BidResult{Code: BidTooLow, MinAcceptable: detail}, nil
	case BidEnded:
		return &BidResult{Code: BidEnded, ClosedNow: detail == 1}, nil
	case BidNotStarted, BidItemNotFound:
		return &BidResult{Code: BidCode(code)}, nil
	default:
		return nil, fmt.Errorf("unexpected bid script code %d", code)
	}
}

// CloseIfDue performs the idempotent sold-out transition for an item
// whose end time has passed. Returns true when this call closed it.
func (c *Client) CloseIfDue(ctx context.Context, itemID string, now time.Time) (bool, error) {
	result, err := c.closeScript.Run(ctx, c.client, []string{itemKey(itemID)}, now.UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to execute close script: %w", err)
	}
	return result == 1, nil
}

// SaveItem writes the full item state hash. Used for item creation
// only: bids go through the Lua script, and starting an item goes
// through SetItemEndTime, so neither path can lose a leader update.
func (c *Client) SaveItem(ctx context.Context, item *models.AuctionItem) error {
	fields := map[string]interface{}{
		"name":        item.Name,
		"description": item.Description,
		"image_url":   item.ImageURL,
		"base_price":  item.BasePrice,
		"sold_out":    boolField(item.SoldOut),
		"start_time":  timeField(item.StartTime),
		"end_time":    timeField(item.EndTime),
		"created_at":  item.CreatedAt.UnixMilli(),
		"updated_at":  item.UpdatedAt.UnixMilli(),
	}
	if item.CurrentBid != nil {
		fields["current_bid"] = *item.CurrentBid
		fields["highest_bidder"] = item.HighestBidder
		fields["bidder_email"] = item.HighestBidderEmail
	}
	if err := c.client.HSet(ctx, itemKey(item.ID), fields).Err(); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.ID, err)
	}
	return nil
}

// SetItemEndTime stamps only the end time on an item that already
// exists. The leader fields are never touched here, so a bid accepted
// by the Lua script between the caller's read and this write survives.
func (c *Client) SetItemEndTime(ctx context.Context, itemID string, end, updatedAt time.Time) error {
	err := c.client.HSet(ctx, itemKey(itemID),
		"end_time", end.UnixMilli(),
		"updated_at", updatedAt.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("failed to set end time for item %s: %w", itemID, err)
	}
	return nil
}

// GetItem reads an item's state hash. Returns nil, nil when the item
// does not exist.
func (c *Client) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	fields, err := c.client.HGetAll(ctx, itemKey(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return itemFromHash(itemID, fields), nil
}

// ListItemIDs scans for all auction item keys. The item set is small
// (an operator-curated auction catalog), so a full scan is fine.
func (c *Client) ListItemIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := c.client.Scan(ctx, 0, itemKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(itemKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	return ids, nil
}

// DeleteItem removes an item's state. Operator action only.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	if err := c.client.Del(ctx, itemKey(itemID)).Err(); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	return nil
}

// PublishEvent publishes an event to the item's Redis Pub/Sub channel.
// This is picked up by the broadcast service for real-time WebSocket
// updates to everyone watching the item.
func (c *Client) PublishEvent(ctx context.Context, itemID string, event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	channel := fmt.Sprintf("bid_events:%s", itemID)
	return c.client.Publish(ctx, channel, eventJSON).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

func itemKey(itemID string) string {
	return itemKeyPrefix + itemID
}

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeField(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func parseScriptAmount(v interface{}) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected bid script detail: %v", v)
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse bid script detail %q: %w", s, err)
	}
	return amount, nil
}

func itemFromHash(itemID string, fields map[string]string) *models.AuctionItem {
	item := &models.AuctionItem{
		ID:          itemID,
		Name:        fields["name"],
		Description: fields["description"],
		ImageURL:    fields["image_url"],
	}
	item.BasePrice, _ = strconv.ParseFloat(fields["base_price"], 64)
	if raw, ok := fields["current_bid"]; ok && raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			item.CurrentBid = &amount
			item.HighestBidder = fields["highest_bidder"]
			item.HighestBidderEmail = fields["bidder_email"]
		}
	}
	item.SoldOut = fields["sold_out"] == "1"
	item.StartTime = hashTime(fields["start_time"])
	item.EndTime = hashTime(fields["end_time"])
	if t := hashTime(fields["created_at"]); t != nil {
		item.CreatedAt = *t
	}
	if t := hashTime(fields["updated_at"]); t != nil {
		item.UpdatedAt = *t
	}
	return item
}

func hashTime(raw string) *time.Time {
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || millis == 0 {
		return nil
	}
	t := time.UnixMilli(millis).UTC()
	return &t
}

// Package auction implements the bidding rules for timed auction items:
// minimum increment, start/end windows, and winner determination. The
// rule core is pure; serialization of concurrent bids happens in the
// Redis store, which runs the same checks atomically per item.
package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

// MinIncrement is the minimum amount by which a new bid must exceed the
// current leading bid (or the base price for the first bid).
const MinIncrement = 5.0

var (
	ErrAuctionEnded           = errors.New("auction ended")
	ErrAuctionNotStarted      = errors.New("auction not started")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrItemNotFound           = errors.New("auction item not found")
)

// BidTooLowError reports a rejected bid together with the lowest amount
// that would currently be accepted, for display to the bidder.
type BidTooLowError struct {
	Amount        float64
	MinAcceptable float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid %.2f below minimum %.2f", e.Amount, e.MinAcceptable)
}

// MinAcceptable returns the lowest bid the item will accept right now.
func MinAcceptable(item *models.AuctionItem) float64 {
	return item.LeadingBid() + MinIncrement
}

// Evaluate decides whether a bid against item is accepted at instant now.
// Preconditions are checked in a fixed order and the first failing one
// wins. A nil error means the bid is acceptable; the caller then applies
// it at the serialization point for the item.
func Evaluate(item *models.AuctionItem, bid *models.Bid, now time.Time) error {
	if item.SoldOut || (item.EndTime != nil && !now.Before(*item.EndTime)) {
		return ErrAuctionEnded
	}
	if item.StartTime != nil && now.Before(*item.StartTime) {
		return ErrAuctionNotStarted
	}
	if bid.BidderName == "" {
		return ErrAuthenticationRequired
	}
	if min := MinAcceptable(item); bid.Amount < min {
		return &BidTooLowError{Amount: bid.Amount, MinAcceptable: min}
	}
	return nil
}

// Apply records an accepted bid on the item. Only the leader fields
// change; callers must have already passed Evaluate at the item's
// serialization point.
func Apply(item *models.AuctionItem, bid *models.Bid) {
	amount := bid.Amount
	item.CurrentBid = &amount
	item.HighestBidder = bid.BidderName
	item.HighestBidderEmail = bid.BidderEmail
}

// ExpireIfDue transitions the item to sold out once its end time has
// passed. Idempotent: calling it again after the flag is set is a no-op.
// Returns true when this call performed the transition.
func ExpireIfDue(item *models.AuctionItem, now time.Time) bool {
	if item.SoldOut {
		return false
	}
	if item.EndTime == nil || now.Before(*item.EndTime) {
		return false
	}
	item.SoldOut = true
	return true
}

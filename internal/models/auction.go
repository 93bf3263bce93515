package models

import "time"

// AuctionItem represents a product offered for time-boxed competitive bidding.
// StartTime and EndTime are optional: a nil StartTime means bidding may begin
// immediately, a nil EndTime means the item has not been started yet.
type AuctionItem struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	BasePrice          float64    `json:"base_price"`
	CurrentBid         *float64   `json:"current_bid,omitempty"`
	HighestBidder      string     `json:"highest_bidder,omitempty"`
	HighestBidderEmail string     `json:"highest_bidder_email,omitempty"`
	StartTime          *time.Time `json:"start_time,omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	SoldOut            bool       `json:"sold_out"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// LeadingBid returns the amount a new bid competes against: the current
// highest accepted bid, or the base price when no bid has been accepted yet.
func (i *AuctionItem) LeadingBid() float64 {
	if i.CurrentBid != nil {
		return *i.CurrentBid
	}
	return i.BasePrice
}

// Bid is a single bid submission against an auction item. Bids are not
// persisted as standalone entities on the hot path; accepted bids are
// archived asynchronously from BidEvents.
type Bid struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	BidderName  string    `json:"bidder_name"`
	BidderEmail string    `json:"bidder_email"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// BidRequest is the incoming bid payload from the API.
type BidRequest struct {
	Amount float64 `json:"amount"`
}

// BidResponse is returned to the submitting bidder only. On rejection,
// Reason carries a human-readable cause and MinAcceptable the lowest
// amount that would currently be accepted.
type BidResponse struct {
	Accepted      bool    `json:"accepted"`
	Reason        string  `json:"reason,omitempty"`
	CurrentBid    float64 `json:"current_bid"`
	YourBid       float64 `json:"your_bid"`
	MinAcceptable float64 `json:"min_acceptable,omitempty"`
}

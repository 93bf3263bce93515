package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

func testItem(basePrice float64) *models.AuctionItem {
	return &models.AuctionItem{
		ID:        "item-1",
		Name:      "Vintage denim jacket",
		BasePrice: basePrice,
	}
}

func bidFrom(name string, amount float64) *models.Bid {
	return &models.Bid{
		ItemID:      "item-1",
		BidderName:  name,
		BidderEmail: name + "@example.com",
		Amount:      amount,
	}
}

func TestEvaluate_FirstBidAgainstBasePrice(t *testing.T) {
	now := time.Now()
	item := testItem(100)

	// One increment below the minimum is rejected and reports the
	// computed minimum.
	err := Evaluate(item, bidFrom("alice", 104), now)
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, 105.0, tooLow.MinAcceptable)

	// The boundary is inclusive: base + increment exactly is accepted.
	require.NoError(t, Evaluate(item, bidFrom("alice", 105), now))
	Apply(item, bidFrom("alice", 105))
	require.NotNil(t, item.CurrentBid)
	assert.Equal(t, 105.0, *item.CurrentBid)
	assert.Equal(t, "alice", item.HighestBidder)
}

func TestEvaluate_IncrementBoundary(t *testing.T) {
	now := time.Now()
	item := testItem(100)
	current := 150.0
	item.CurrentBid = &current

	require.NoError(t, Evaluate(item, bidFrom("bob", 155), now))

	err := Evaluate(item, bidFrom("bob", 154.99), now)
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, 155.0, tooLow.MinAcceptable)
}

func TestEvaluate_PreconditionOrder(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)
	now := time.Now()

	t.Run("ended wins over everything", func(t *testing.T) {
		item := testItem(100)
		item.EndTime = &past
		// Anonymous, too-low bid against an ended auction: the ended
		// check is reported, not the missing identity.
		err := Evaluate(item, &models.Bid{Amount: 1}, now)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})

	t.Run("sold out is terminal regardless of end time", func(t *testing.T) {
		item := testItem(100)
		item.SoldOut = true
		err := Evaluate(item, bidFrom("alice", 1000), now)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})

	t.Run("not started wins over missing identity", func(t *testing.T) {
		item := testItem(100)
		item.StartTime = &future
		err := Evaluate(item, &models.Bid{Amount: 1000}, now)
		assert.ErrorIs(t, err, ErrAuctionNotStarted)
	})

	t.Run("missing identity wins over amount check", func(t *testing.T) {
		item := testItem(100)
		err := Evaluate(item, &models.Bid{Amount: 1}, now)
		assert.ErrorIs(t, err, ErrAuthenticationRequired)
	})

	t.Run("end time boundary is exclusive for bidding", func(t *testing.T) {
		item := testItem(100)
		end := now
		item.EndTime = &end
		// now == endTime means the auction is already over.
		err := Evaluate(item, bidFrom("alice", 1000), now)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})
}

func TestEvaluate_MonotonicCurrentBid(t *testing.T) {
	now := time.Now()
	item := testItem(100)

	amounts := []float64{104, 105, 107, 110, 109, 115, 114.99, 120}
	last := item.BasePrice
	for _, amount := range amounts {
		bid := bidFrom("bidder", amount)
		if err := Evaluate(item, bid, now); err == nil {
			Apply(item, bid)
		}
		// After any sequence of bids the leading bid never decreases
		// and never drops below the base price.
		assert.GreaterOrEqual(t, item.LeadingBid(), last)
		assert.GreaterOrEqual(t, item.LeadingBid(), item.BasePrice)
		if item.CurrentBid != nil && item.LeadingBid() != last {
			// Every accepted bid moved the price by at least the
			// minimum increment.
			assert.GreaterOrEqual(t, item.LeadingBid(), last+MinIncrement)
		}
		last = item.LeadingBid()
	}

	require.NotNil(t, item.CurrentBid)
	assert.Equal(t, 120.0, *item.CurrentBid)
}

func TestExpireIfDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	t.Run("no end time set", func(t *testing.T) {
		item := testItem(100)
		assert.False(t, ExpireIfDue(item, now))
		assert.False(t, item.SoldOut)
	})

	t.Run("end time in the future", func(t *testing.T) {
		item := testItem(100)
		item.EndTime = &future
		assert.False(t, ExpireIfDue(item, now))
		assert.False(t, item.SoldOut)
	})

	t.Run("due item transitions once", func(t *testing.T) {
		item := testItem(100)
		item.EndTime = &past

		assert.True(t, ExpireIfDue(item, now))
		assert.True(t, item.SoldOut)

		// Idempotent: the second call is a no-op.
		assert.False(t, ExpireIfDue(item, now))
		assert.True(t, item.SoldOut)
	})

	t.Run("no bid is accepted after expiry", func(t *testing.T) {
		item := testItem(100)
		item.EndTime = &past
		require.True(t, ExpireIfDue(item, now))

		err := Evaluate(item, bidFrom("alice", 1_000_000), now)
		assert.ErrorIs(t, err, ErrAuctionEnded)

		// Leader state is frozen.
		assert.Nil(t, item.CurrentBid)
		assert.Empty(t, item.HighestBidder)
	})
}

func TestMinAcceptable(t *testing.T) {
	item := testItem(100)
	assert.Equal(t, 105.0, MinAcceptable(item))

	current := 200.0
	item.CurrentBid = &current
	assert.Equal(t, 205.0, MinAcceptable(item))
}

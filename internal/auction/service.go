package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/redisstore"
)

// ItemStore is the live auction state behind the service. Implemented
// by redisstore.Client; bids and closes are atomic per item.
type ItemStore interface {
	PlaceBid(ctx context.Context, itemID string, bid *models.Bid, now time.Time, minIncrement float64) (*redisstore.BidResult, error)
	CloseIfDue(ctx context.Context, itemID string, now time.Time) (bool, error)
	SaveItem(ctx context.Context, item *models.AuctionItem) error
	SetItemEndTime(ctx context.Context, itemID string, end, updatedAt time.Time) error
	GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error)
	ListItemIDs(ctx context.Context) ([]string, error)
	DeleteItem(ctx context.Context, itemID string) error
	PublishEvent(ctx context.Context, itemID string, event interface{}) error
}

// ArchiveQueue durably records accepted bids and auction closes for the
// archival worker. At-least-once delivery; the worker deduplicates.
type ArchiveQueue interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Service handles the business logic for bidding operations
type Service struct {
	store      ItemStore
	queue      ArchiveQueue
	priceCache sync.Map // itemID -> leading bid, pre-filter before Redis
	now        func() time.Time
}

// NewService creates a new auction service
func NewService(store ItemStore, queue ArchiveQueue) *Service {
	return &Service{
		store: store,
		queue: queue,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBid runs the complete bid workflow:
// 1. Resolve the bidder's identity (absent identity is a rejection,
//    ordered after the ended/not-started checks)
// 2. Pre-filter against the local price cache (fast rejection)
// 3. Atomic check-then-bid in Redis with server time
// 4. On acceptance, publish to Redis Pub/Sub for real-time broadcast
//    and to the archival queue
// Every rejection is returned to the submitting caller only, with a
// human-readable reason; nothing is retried automatically.
func (s *Service) PlaceBid(ctx context.Context, itemID string, user *models.User, amount float64) (*models.BidResponse, error) {
	now := s.now()

	if user == nil {
		return s.rejectUnauthenticated(ctx, itemID, amount, now)
	}

	bid := &models.Bid{
		ID:          uuid.New().String(),
		ItemID:      itemID,
		BidderName:  user.Name,
		BidderEmail: user.Email,
		Amount:      amount,
		Timestamp:   now,
	}

	// Pre-filter: an amount at or below the cached leading bid cannot
	// satisfy the increment rule. Verify against Redis before rejecting
	// so a stale cache never turns away a valid bid.
	if cached, ok := s.priceCache.Load(itemID); ok && amount < cached.(float64)+MinIncrement {
		item, err := s.store.GetItem(ctx, itemID)
		if err == nil && item != nil {
			s.priceCache.Store(itemID, item.LeadingBid())
			if evalErr := Evaluate(item, bid, now); evalErr != nil {
				return rejection(evalErr, item.LeadingBid(), amount), nil
			}
		}
	}

	result, err := s.store.PlaceBid(ctx, itemID, bid, now, MinIncrement)
	if err != nil {
		return nil, fmt.Errorf("failed to place bid: %w", err)
	}

	switch result.Code {
	case redisstore.BidAccepted:
		s.priceCache.Store(itemID, amount)
		s.publishAccepted(bid, result.PreviousBid)
		return &models.BidResponse{
			Accepted:   true,
			CurrentBid: amount,
			YourBid:    amount,
		}, nil
	case redisstore.BidTooLow:
		s.priceCache.Store(itemID, result.MinAcceptable-MinIncrement)
		err := &BidTooLowError{Amount: amount, MinAcceptable: result.MinAcceptable}
		return rejection(err, result.MinAcceptable-MinIncrement, amount), nil
	case redisstore.BidEnded:
		if result.ClosedNow {
			// This bid performed the lazy close; the sweep will see the
			// item already sold out, so the announcement happens here.
			s.publishClosed(ctx, itemID, now)
		}
		return rejection(ErrAuctionEnded, s.leadingBid(ctx, itemID), amount), nil
	case redisstore.BidNotStarted:
		return rejection(ErrAuctionNotStarted, s.leadingBid(ctx, itemID), amount), nil
	case redisstore.BidItemNotFound:
		return nil, ErrItemNotFound
	default:
		return nil, fmt.Errorf("unexpected bid result code %d", result.Code)
	}
}

// rejectUnauthenticated preserves the precondition order for anonymous
// callers: an ended or not-yet-open auction is reported ahead of the
// missing identity.
func (s *Service) rejectUnauthenticated(ctx context.Context, itemID string, amount float64, now time.Time) (*models.BidResponse, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	anonymous := &models.Bid{ItemID: itemID, Amount: amount, Timestamp: now}
	if evalErr := Evaluate(item, anonymous, now); evalErr != nil {
		return rejection(evalErr, item.LeadingBid(), amount), nil
	}
	return rejection(ErrAuthenticationRequired, item.LeadingBid(), amount), nil
}

// leadingBid reads the item's current leading bid for rejection
// responses. Best effort: zero when the item cannot be read.
func (s *Service) leadingBid(ctx context.Context, itemID string) float64 {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil || item == nil {
		return 0
	}
	return item.LeadingBid()
}

func rejection(cause error, currentBid, amount float64) *models.BidResponse {
	resp := &models.BidResponse{
		Accepted:   false,
		Reason:     cause.Error(),
		CurrentBid: currentBid,
		YourBid:    amount,
	}
	if tooLow, ok := cause.(*BidTooLowError); ok {
		resp.Reason = fmt.Sprintf("bid below minimum: next bid must be at least %.2f", tooLow.MinAcceptable)
		resp.MinAcceptable = tooLow.MinAcceptable
	}
	return resp
}

// publishAccepted fans the accepted bid out to watchers and to the
// archival queue. Both are best effort on the request path: the bid is
// already durable at the serialization point, and the archival queue
// redelivers on consumer failure.
func (s *Service) publishAccepted(bid *models.Bid, previousBid float64) {
	event := &models.BidEvent{
		EventID:     uuid.New().String(),
		ItemID:      bid.ItemID,
		BidID:       bid.ID,
		BidderName:  bid.BidderName,
		BidderEmail: bid.BidderEmail,
		Amount:      bid.Amount,
		PreviousBid: previousBid,
		Timestamp:   bid.Timestamp,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.PublishEvent(ctx, event.ItemID, event); err != nil {
			fmt.Printf("[BROADCAST] failed to publish bid event: %v\n", err)
		}
	}()

	go func() {
		if err := s.publishToArchivalQueue("bid.events."+event.ItemID, event); err != nil {
			fmt.Printf("[ARCHIVE] failed to queue bid event: %v\n", err)
		}
	}()
}

// CloseDueItems sweeps all items and closes those whose end time has
// passed. The close is performed atomically at the item's serialization
// point, so a concurrent bid either lands before the close or is
// rejected; the sweep exists to converge items nobody is bidding on.
func (s *Service) CloseDueItems(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.ListItemIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list items: %w", err)
	}

	closed := 0
	for _, id := range ids {
		didClose, err := s.store.CloseIfDue(ctx, id, now)
		if err != nil {
			fmt.Printf("[CLOSER] failed to close item %s: %v\n", id, err)
			continue
		}
		if !didClose {
			continue
		}
		closed++
		s.publishClosed(ctx, id, now)
	}
	return closed, nil
}

func (s *Service) publishClosed(ctx context.Context, itemID string, closedAt time.Time) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil || item == nil {
		fmt.Printf("[CLOSER] failed to load closed item %s: %v\n", itemID, err)
		return
	}
	event := &models.AuctionClosedEvent{
		EventID:     uuid.New().String(),
		ItemID:      itemID,
		FinalBid:    item.LeadingBid(),
		WinnerName:  item.HighestBidder,
		WinnerEmail: item.HighestBidderEmail,
		ClosedAt:    closedAt,
	}
	if err := s.store.PublishEvent(ctx, itemID, event); err != nil {
		fmt.Printf("[BROADCAST] failed to publish close event: %v\n", err)
	}
	if err := s.publishToArchivalQueue("auction.closed."+itemID, event); err != nil {
		fmt.Printf("[ARCHIVE] failed to queue close event: %v\n", err)
	}
}

func (s *Service) publishToArchivalQueue(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.queue.Publish(ctx, subject, data)
}

// CreateItem registers a new auction item. Operator action.
func (s *Service) CreateItem(ctx context.Context, name, description, imageURL string, basePrice float64, startTime *time.Time) (*models.AuctionItem, error) {
	if basePrice < 0 {
		return nil, fmt.Errorf("base price must not be negative")
	}
	now := s.now()
	item := &models.AuctionItem{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		BasePrice:   basePrice,
		StartTime:   startTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// StartItem opens bidding on an item for the given duration by stamping
// its end time. Operator action. Only the end time is written: a bid
// accepted at the serialization point while this runs keeps its leader.
func (s *Service) StartItem(ctx context.Context, itemID string, duration time.Duration) (*models.AuctionItem, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.SoldOut {
		return nil, ErrAuctionEnded
	}
	now := s.now()
	end := now.Add(duration)
	if err := s.store.SetItemEndTime(ctx, itemID, end, now); err != nil {
		return nil, err
	}
	item.EndTime = &end
	item.UpdatedAt = now
	return item, nil
}

// GetItem returns the live state of a single item.
func (s *Service) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// ListItems returns the live state of every auction item.
func (s *Service) ListItems(ctx context.Context) ([]*models.AuctionItem, error) {
	ids, err := s.store.ListItemIDs(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*models.AuctionItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// DeleteItem removes an item. Operator action.
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	s.priceCache.Delete(itemID)
	return s.store.DeleteItem(ctx, itemID)
}

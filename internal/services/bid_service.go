package services

import (
	"bidding-engine/internal/clock"
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxRetries  = 5
	DefaultBidPageSize = 50
	MaxBidPageSize     = 500
)

// BidService places bids and answers auction state and history queries. It
// holds no per-auction state; the store's CAS is the only synchronization.
type BidService struct {
	store      domain.AuctionStore
	clock      clock.Clock
	publisher  domain.EventPublisher
	maxRetries  int
	amountScale int32
	newID       func() string
	log         logger.Logger
}

type BidServiceOption func(*BidService)

// WithMaxRetries bounds the reload-and-retry loop after a lost CAS race.
func WithMaxRetries(n int) BidServiceOption {
	return func(s *BidService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithAmountScale caps the fractional digits a bid amount may carry, so an
// accepted amount is exactly what the store keeps.
func WithAmountScale(scale int32) BidServiceOption {
	return func(s *BidService) {
		if scale >= 0 {
			s.amountScale = scale
		}
	}
}

func WithBidEventPublisher(p domain.EventPublisher) BidServiceOption {
	return func(s *BidService) {
		s.publisher = p
	}
}

func WithBidIDGenerator(fn func() string) BidServiceOption {
	return func(s *BidService) {
		s.newID = fn
	}
}

func NewBidService(store domain.AuctionStore, clk clock.Clock, log logger.Logger, opts ...BidServiceOption) *BidService {
	s := &BidService{
		store:       store,
		clock:       clk,
		maxRetries:  DefaultMaxRetries,
		amountScale: domain.DefaultAmountScale,
		newID:       func() string { return utils.GenerateID("bid") },
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid runs load -> validate -> CAS, reloading on conflict up to maxRetries
// times. Business outcomes come back in BidResult; the error is reserved for
// storage faults, which are never retried here.
func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.BidResult, error) {
	if bidderID == "" {
		return domain.BidResult{}, domain.ErrBidderRequired
	}
	if domain.ExceedsScale(amount, s.amountScale) {
		return domain.BidResult{}, fmt.Errorf("%w: at most %d decimal places", domain.ErrInvalidAmount, s.amountScale)
	}

	attempts := s.maxRetries + 1
	var last domain.Auction
	for attempt := 1; attempt <= attempts; attempt++ {
		snapshot, err := s.store.LoadSnapshot(ctx, auctionID)
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return domain.Rejected(domain.Rejection{Kind: domain.RejectNotFound}), nil
		}
		if err != nil {
			return domain.BidResult{}, fmt.Errorf("load auction %s: %w", auctionID, err)
		}
		last = snapshot

		// Read the clock after the snapshot so bid timestamps follow commit order.
		now := s.clock.Now()
		decision := ValidateBid(snapshot, now, bidderID, amount)
		if !decision.Accepted() {
			s.log.Debug("Bid rejected", "auction_id", auctionID, "bidder_id", bidderID,
				"amount", amount.String(), "reason", decision.Rejection.Kind)
			return domain.Rejected(*decision.Rejection), nil
		}

		newVersion := snapshot.Version + 1
		bid := domain.Bid{
			ID:        s.newID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    decision.NewPrice,
			Timestamp: now,
			Sequence:  newVersion,
		}
		committed, err := s.store.CompareAndSwap(ctx, auctionID, snapshot.Version, domain.BidCommit{
			NewPrice:   decision.NewPrice,
			NewBidder:  bidderID,
			NewVersion: newVersion,
			Bid:        bid,
		})
		if err != nil {
			return domain.BidResult{}, fmt.Errorf("commit bid on auction %s: %w", auctionID, err)
		}
		if !committed {
			s.log.Debug("Lost bid race, reloading", "auction_id", auctionID, "bidder_id", bidderID,
				"attempt", attempt, "version", snapshot.Version)
			continue
		}

		s.log.Info("Bid accepted", "auction_id", auctionID, "bidder_id", bidderID,
			"amount", bid.Amount.String(), "version", newVersion, "attempt", attempt)

		publishEvent(ctx, s.publisher, s.log, &domain.AuctionEvent{
			Type:      domain.EventBidAccepted,
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    bid.Amount,
			Version:   newVersion,
			Timestamp: bid.Timestamp,
		})
		return domain.Accepted(bid, newVersion), nil
	}

	s.log.Warn("Bid retries exhausted", "auction_id", auctionID, "bidder_id", bidderID, "attempt", attempts)
	return domain.Rejected(domain.Rejection{
		Kind:              domain.RejectBusy,
		Status:            domain.DeriveStatus(last, s.clock.Now()),
		CurrentPrice:      last.CurrentPrice,
		MinimumAcceptable: last.MinimumNextBid(),
		EndTime:           last.EndTime,
		Attempts:          attempts,
	}), nil
}

func (s *BidService) GetAuctionState(ctx context.Context, auctionID string) (domain.AuctionState, error) {
	auction, err := s.store.LoadSnapshot(ctx, auctionID)
	if err != nil {
		return domain.AuctionState{}, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	return auction.State(s.clock.Now()), nil
}

// ListBidHistory returns accepted bids oldest first, strictly after the cursor.
// NextCursor is set when more bids remain.
func (s *BidService) ListBidHistory(ctx context.Context, auctionID string, after domain.BidCursor, limit int) (domain.BidPage, error) {
	if limit <= 0 {
		limit = DefaultBidPageSize
	}
	if limit > MaxBidPageSize {
		limit = MaxBidPageSize
	}

	if _, err := s.store.LoadSnapshot(ctx, auctionID); err != nil {
		return domain.BidPage{}, fmt.Errorf("load auction %s: %w", auctionID, err)
	}

	bids, err := s.store.ListBids(ctx, auctionID, after, limit+1)
	if err != nil {
		return domain.BidPage{}, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}

	page := domain.BidPage{Bids: bids}
	if len(bids) > limit {
		page.Bids = bids[:limit]
		tail := page.Bids[limit-1]
		page.NextCursor = &domain.BidCursor{Timestamp: tail.Timestamp, Sequence: tail.Sequence}
	}
	if page.Bids == nil {
		page.Bids = []domain.Bid{}
	}
	return page, nil
}

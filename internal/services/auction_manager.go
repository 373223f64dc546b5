package services

import (
	"bidding-engine/internal/clock"
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CreateAuctionRequest struct {
	// ID is optional; one is generated when empty.
	ID           string
	ProductRef   string
	StartTime    time.Time
	EndTime      time.Time
	StartPrice   decimal.Decimal
	MinIncrement decimal.NullDecimal
}

// AuctionManager handles the administrative side: creating auctions and
// cancelling them.
type AuctionManager struct {
	store      domain.AuctionStore
	clock      clock.Clock
	publisher  domain.EventPublisher
	rules       *IncrementRules
	maxRetries  int
	amountScale int32
	log         logger.Logger
}

type AuctionManagerOption func(*AuctionManager)

// WithAuctionAmountScale caps the fractional digits of start prices and
// increments.
func WithAuctionAmountScale(scale int32) AuctionManagerOption {
	return func(am *AuctionManager) {
		if scale >= 0 {
			am.amountScale = scale
		}
	}
}

func NewAuctionManager(
	store domain.AuctionStore,
	clk clock.Clock,
	publisher domain.EventPublisher,
	rules *IncrementRules,
	log logger.Logger,
	opts ...AuctionManagerOption,
) *AuctionManager {
	if rules == nil {
		rules = DefaultIncrementRules()
	}
	am := &AuctionManager{
		store:       store,
		clock:       clk,
		publisher:   publisher,
		rules:       rules,
		maxRetries:  DefaultMaxRetries,
		amountScale: domain.DefaultAmountScale,
		log:         log,
	}
	for _, opt := range opts {
		opt(am)
	}
	return am
}

func (am *AuctionManager) CreateAuction(ctx context.Context, req CreateAuctionRequest) (domain.Auction, error) {
	if !req.StartTime.Before(req.EndTime) {
		return domain.Auction{}, fmt.Errorf("%w: start time must be before end time", domain.ErrInvalidAuction)
	}
	if req.StartPrice.IsNegative() {
		return domain.Auction{}, fmt.Errorf("%w: start price must not be negative", domain.ErrInvalidAuction)
	}

	increment := am.rules.IncrementFor(req.StartPrice)
	if req.MinIncrement.Valid {
		increment = req.MinIncrement.Decimal
	}
	if !increment.IsPositive() {
		return domain.Auction{}, fmt.Errorf("%w: min increment must be positive", domain.ErrInvalidAuction)
	}
	if domain.ExceedsScale(req.StartPrice, am.amountScale) || domain.ExceedsScale(increment, am.amountScale) {
		return domain.Auction{}, fmt.Errorf("%w: amounts allow at most %d decimal places",
			domain.ErrInvalidAuction, am.amountScale)
	}

	id := req.ID
	if id == "" {
		id = utils.GenerateID("auction")
	}

	now := am.clock.Now()
	auction := domain.Auction{
		ID:           id,
		ProductRef:   req.ProductRef,
		StartTime:    req.StartTime.UTC(),
		EndTime:      req.EndTime.UTC(),
		MinIncrement: increment,
		StartPrice:   req.StartPrice,
		CurrentPrice: req.StartPrice,
		Status:       domain.AuctionScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := am.store.CreateAuction(ctx, auction); err != nil {
		return domain.Auction{}, fmt.Errorf("create auction %s: %w", id, err)
	}

	am.log.Info("Auction created", "auction_id", id, "start_time", auction.StartTime,
		"end_time", auction.EndTime, "start_price", auction.StartPrice.String(),
		"min_increment", increment.String())
	return auction, nil
}

// CancelAuction stamps Cancelled with a reason. The status write bumps the
// version, so any bid CAS prepared against the old snapshot fails and its retry
// sees a non-active auction.
func (am *AuctionManager) CancelAuction(ctx context.Context, auctionID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.ErrCancelReasonRequired
	}

	for attempt := 1; attempt <= am.maxRetries+1; attempt++ {
		auction, err := am.store.LoadSnapshot(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("load auction %s: %w", auctionID, err)
		}
		if domain.DeriveStatus(auction, am.clock.Now()).Terminal() {
			return domain.ErrAlreadyTerminal
		}

		ok, err := am.store.CompareAndSwapStatus(ctx, auctionID, auction.Status, domain.AuctionCancelled, reason)
		if err != nil {
			return fmt.Errorf("cancel auction %s: %w", auctionID, err)
		}
		if !ok {
			am.log.Debug("Cancel lost status race, reloading", "auction_id", auctionID, "attempt", attempt)
			continue
		}

		am.log.Info("Auction cancelled", "auction_id", auctionID, "reason", reason)
		publishEvent(ctx, am.publisher, am.log, &domain.AuctionEvent{
			Type:      domain.EventAuctionCancelled,
			AuctionID: auctionID,
			BidderID:  auction.HighestBidderID,
			Amount:    auction.CurrentPrice,
			Version:   auction.Version + 1,
			Reason:    reason,
			Timestamp: am.clock.Now(),
		})
		return nil
	}
	return fmt.Errorf("cancel auction %s: %w", auctionID, domain.ErrBusy)
}

// GetAuction returns the raw stored record.
func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (domain.Auction, error) {
	auction, err := am.store.LoadSnapshot(ctx, auctionID)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	return auction, nil
}

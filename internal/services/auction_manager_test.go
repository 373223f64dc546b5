package services

import (
	"bidding-engine/internal/config"
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestCreateAuctionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		req  CreateAuctionRequest
	}{
		{"end before start", CreateAuctionRequest{StartTime: t0, EndTime: t0.Add(-time.Second), StartPrice: dec(1)}},
		{"end equals start", CreateAuctionRequest{StartTime: t0, EndTime: t0, StartPrice: dec(1)}},
		{"negative price", CreateAuctionRequest{StartTime: t0, EndTime: t0.Add(time.Hour), StartPrice: dec(-1)}},
		{"zero increment", CreateAuctionRequest{StartTime: t0, EndTime: t0.Add(time.Hour), StartPrice: dec(1),
			MinIncrement: decimal.NewNullDecimal(decimal.Zero)}},
		{"increment finer than scale", CreateAuctionRequest{StartTime: t0, EndTime: t0.Add(time.Hour), StartPrice: dec(1),
			MinIncrement: decimal.NewNullDecimal(decimal.RequireFromString("0.00001"))}},
		{"price finer than scale", CreateAuctionRequest{StartTime: t0, EndTime: t0.Add(time.Hour),
			StartPrice: decimal.RequireFromString("100.00005")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.manager.CreateAuction(ctx, tc.req)
			check.True(t, errors.Is(err, domain.ErrInvalidAuction))
		})
	}
}

func TestCreateAuctionAmountScale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Trailing zeros are not extra precision.
	auction, err := f.manager.CreateAuction(ctx, CreateAuctionRequest{
		StartTime:    t0,
		EndTime:      t0.Add(time.Hour),
		StartPrice:   decimal.RequireFromString("99.990000"),
		MinIncrement: decimal.NewNullDecimal(decimal.RequireFromString("0.0001")),
	})
	assert.NoError(t, err)
	check.Equal(t, "0.0001", auction.MinIncrement.String())

	wide := NewAuctionManager(f.store, f.clock, nil, nil, logger.NewNop(), WithAuctionAmountScale(6))
	_, err = wide.CreateAuction(ctx, CreateAuctionRequest{
		StartTime:    t0,
		EndTime:      t0.Add(time.Hour),
		StartPrice:   dec(1),
		MinIncrement: decimal.NewNullDecimal(decimal.RequireFromString("0.00001")),
	})
	assert.NoError(t, err)
}

func TestCreateAuctionDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	auction, err := f.manager.CreateAuction(ctx, CreateAuctionRequest{
		ProductRef: "sku-1",
		StartTime:  t0,
		EndTime:    t0.Add(time.Hour),
		StartPrice: dec(250),
	})
	assert.NoError(t, err)
	check.NotEqual(t, "", auction.ID)
	check.Equal(t, domain.AuctionScheduled, auction.Status)
	check.Equal(t, "10", auction.MinIncrement.String())
	check.Equal(t, "250", auction.CurrentPrice.String())
	check.Equal(t, int64(0), auction.Version)

	stored, err := f.manager.GetAuction(ctx, auction.ID)
	assert.NoError(t, err)
	check.Equal(t, "sku-1", stored.ProductRef)

	_, err = f.manager.CreateAuction(ctx, CreateAuctionRequest{
		ID: auction.ID, StartTime: t0, EndTime: t0.Add(time.Hour), StartPrice: dec(1),
	})
	check.True(t, errors.Is(err, domain.ErrAuctionExists))
}

func TestCancelScheduledAuction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager.CreateAuction(ctx, CreateAuctionRequest{
		ID:         "a1",
		StartTime:  t0.Add(time.Hour),
		EndTime:    t0.Add(2 * time.Hour),
		StartPrice: dec(100),
	})
	assert.NoError(t, err)

	assert.NoError(t, f.manager.CancelAuction(ctx, "a1", "duplicate listing"))

	f.clock.Set(t0.Add(90 * time.Minute))
	res, err := f.bids.PlaceBid(ctx, "a1", "u1", dec(500))
	assert.NoError(t, err)
	check.Equal(t, domain.RejectAuctionNotActive, res.Rejection.Kind)
	check.Equal(t, domain.AuctionCancelled, res.Rejection.Status)

	state, err := f.bids.GetAuctionState(ctx, "a1")
	assert.NoError(t, err)
	check.Equal(t, domain.AuctionCancelled, state.Status)
	check.Equal(t, "duplicate listing", state.CancelReason)

	check.Equal(t, []domain.AuctionEventType{domain.EventAuctionCancelled}, f.events.types())
	check.Equal(t, "duplicate listing", f.events.events[0].Reason)
}

func TestCancelAuctionErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auction := f.openAuction(t, "a1", 100, 10)

	check.True(t, errors.Is(f.manager.CancelAuction(ctx, "a1", "  "), domain.ErrCancelReasonRequired))
	check.True(t, errors.Is(f.manager.CancelAuction(ctx, "missing", "x"), domain.ErrAuctionNotFound))

	assert.NoError(t, f.manager.CancelAuction(ctx, "a1", "fraud"))
	check.True(t, errors.Is(f.manager.CancelAuction(ctx, "a1", "again"), domain.ErrAlreadyTerminal))

	// derived Completed counts as terminal even before a sweep
	f.openAuction(t, "a2", 100, 10)
	f.clock.Set(auction.EndTime)
	check.True(t, errors.Is(f.manager.CancelAuction(ctx, "a2", "late"), domain.ErrAlreadyTerminal))
}

func TestCancelWinsRaceAgainstBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openAuction(t, "a1", 100, 10)

	racing := &hookStore{AuctionStore: f.store}
	racing.beforeCAS = func() {
		check.NoError(t, f.manager.CancelAuction(ctx, "a1", "seller withdrew"))
	}
	svc := NewBidService(racing, f.clock, logger.NewNop())

	res, err := svc.PlaceBid(ctx, "a1", "u1", dec(200))
	assert.NoError(t, err)
	check.False(t, res.Accepted)
	check.Equal(t, domain.RejectAuctionNotActive, res.Rejection.Kind)

	page, err := f.bids.ListBidHistory(ctx, "a1", domain.BidCursor{}, 10)
	assert.NoError(t, err)
	check.Equal(t, 0, len(page.Bids))
}

func TestIncrementRules(t *testing.T) {
	rules := DefaultIncrementRules()
	check.Equal(t, "5", rules.IncrementFor(dec(0)).String())
	check.Equal(t, "5", rules.IncrementFor(decimal.RequireFromString("99.99")).String())
	check.Equal(t, "10", rules.IncrementFor(dec(100)).String())
	check.Equal(t, "25", rules.IncrementFor(dec(500)).String())
	check.Equal(t, "25", rules.IncrementFor(dec(1_000_000)).String())

	custom, err := NewIncrementRules([]config.IncrementTier{
		{Increment: 2},
		{UpTo: 10, Increment: 0.5},
	})
	assert.NoError(t, err)
	check.Equal(t, "0.5", custom.IncrementFor(dec(3)).String())
	check.Equal(t, "2", custom.IncrementFor(dec(10)).String())

	_, err = NewIncrementRules([]config.IncrementTier{{UpTo: 10, Increment: 1}})
	check.Error(t, err)
	_, err = NewIncrementRules([]config.IncrementTier{{Increment: -1}})
	check.Error(t, err)
}

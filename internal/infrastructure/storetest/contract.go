// Package storetest holds the behavioural checks every AuctionStore backend
// must pass.
package storetest

import (
	"bidding-engine/internal/domain"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

var base = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

func NewAuction(id string) domain.Auction {
	return domain.Auction{
		ID:           id,
		ProductRef:   "product-" + id,
		StartTime:    base,
		EndTime:      base.Add(time.Hour),
		MinIncrement: decimal.NewFromInt(10),
		StartPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(100),
		Status:       domain.AuctionScheduled,
		CreatedAt:    base.Add(-time.Hour),
		UpdatedAt:    base.Add(-time.Hour),
	}
}

func Commit(auctionID, bidder string, amount int64, version int64, at time.Time) domain.BidCommit {
	price := decimal.NewFromInt(amount)
	return domain.BidCommit{
		NewPrice:   price,
		NewBidder:  bidder,
		NewVersion: version,
		Bid: domain.Bid{
			ID:        fmt.Sprintf("bid-%s-%d", auctionID, version),
			AuctionID: auctionID,
			BidderID:  bidder,
			Amount:    price,
			Timestamp: at,
			Sequence:  version,
		},
	}
}

// Run exercises store against the AuctionStore contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) domain.AuctionStore) {
	ctx := context.Background()

	t.Run("create and load", func(t *testing.T) {
		store := newStore(t)
		auction := NewAuction("a1")
		assert.NoError(t, store.CreateAuction(ctx, auction))

		got, err := store.LoadSnapshot(ctx, "a1")
		assert.NoError(t, err)
		check.Equal(t, "product-a1", got.ProductRef)
		check.True(t, got.StartTime.Equal(auction.StartTime))
		check.True(t, got.EndTime.Equal(auction.EndTime))
		check.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(100)))
		check.True(t, got.MinIncrement.Equal(decimal.NewFromInt(10)))
		check.Equal(t, domain.AuctionScheduled, got.Status)
		check.Equal(t, int64(0), got.Version)
		check.Equal(t, "", got.HighestBidderID)

		check.True(t, errors.Is(store.CreateAuction(ctx, auction), domain.ErrAuctionExists))
	})

	t.Run("load missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.LoadSnapshot(ctx, "nope")
		check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
	})

	t.Run("compare and swap", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a1")))

		ok, err := store.CompareAndSwap(ctx, "a1", 0, Commit("a1", "u1", 110, 1, base.Add(time.Minute)))
		assert.NoError(t, err)
		check.True(t, ok)

		// stale version
		ok, err = store.CompareAndSwap(ctx, "a1", 0, Commit("a1", "u2", 120, 1, base.Add(2*time.Minute)))
		assert.NoError(t, err)
		check.False(t, ok)

		got, err := store.LoadSnapshot(ctx, "a1")
		assert.NoError(t, err)
		check.Equal(t, int64(1), got.Version)
		check.Equal(t, "u1", got.HighestBidderID)
		check.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(110)))

		bids, err := store.ListBids(ctx, "a1", domain.BidCursor{}, 10)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(bids))
		check.Equal(t, "u1", bids[0].BidderID)
		check.Equal(t, int64(1), bids[0].Sequence)
		check.True(t, bids[0].Amount.Equal(decimal.NewFromInt(110)))
		check.True(t, bids[0].Timestamp.Equal(base.Add(time.Minute)))
	})

	t.Run("status swap bumps version", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a1")))

		ok, err := store.CompareAndSwapStatus(ctx, "a1", domain.AuctionActive, domain.AuctionCompleted, "")
		assert.NoError(t, err)
		check.False(t, ok)

		ok, err = store.CompareAndSwapStatus(ctx, "a1", domain.AuctionScheduled, domain.AuctionCancelled, "duplicate listing")
		assert.NoError(t, err)
		check.True(t, ok)

		got, err := store.LoadSnapshot(ctx, "a1")
		assert.NoError(t, err)
		check.Equal(t, domain.AuctionCancelled, got.Status)
		check.Equal(t, "duplicate listing", got.CancelReason)
		check.Equal(t, int64(1), got.Version)

		// a bid prepared against the pre-cancel version must fail
		ok, err = store.CompareAndSwap(ctx, "a1", 0, Commit("a1", "u1", 110, 1, base))
		assert.NoError(t, err)
		check.False(t, ok)
	})

	t.Run("list bids with cursor", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a1")))
		for v := int64(1); v <= 5; v++ {
			bidder := fmt.Sprintf("u%d", v)
			ok, err := store.CompareAndSwap(ctx, "a1", v-1, Commit("a1", bidder, 100+10*v, v, base.Add(time.Duration(v)*time.Second)))
			assert.NoError(t, err)
			assert.True(t, ok)
		}

		first, err := store.ListBids(ctx, "a1", domain.BidCursor{}, 2)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(first))
		check.Equal(t, int64(1), first[0].Sequence)
		check.Equal(t, int64(2), first[1].Sequence)

		rest, err := store.ListBids(ctx, "a1", domain.BidCursor{Timestamp: first[1].Timestamp, Sequence: first[1].Sequence}, 10)
		assert.NoError(t, err)
		assert.Equal(t, 3, len(rest))
		check.Equal(t, int64(3), rest[0].Sequence)
		check.Equal(t, int64(5), rest[2].Sequence)

		byTime, err := store.ListBids(ctx, "a1", domain.BidCursor{Timestamp: base.Add(3 * time.Second)}, 10)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(byTime))
		check.Equal(t, "u4", byTime[0].BidderID)
	})

	t.Run("list by status", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a1")))
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a2")))
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a3")))
		_, err := store.CompareAndSwapStatus(ctx, "a2", domain.AuctionScheduled, domain.AuctionActive, "")
		assert.NoError(t, err)
		_, err = store.CompareAndSwapStatus(ctx, "a3", domain.AuctionScheduled, domain.AuctionCancelled, "gone")
		assert.NoError(t, err)

		open, err := store.ListAuctionsByStatus(ctx, domain.AuctionScheduled, domain.AuctionActive)
		assert.NoError(t, err)
		check.Equal(t, 2, len(open))

		cancelled, err := store.ListAuctionsByStatus(ctx, domain.AuctionCancelled)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(cancelled))
		check.Equal(t, "a3", cancelled[0].ID)
	})

	t.Run("concurrent swaps on one version", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.CreateAuction(ctx, NewAuction("a1")))

		const writers = 8
		var wg sync.WaitGroup
		results := make(chan bool, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := store.CompareAndSwap(ctx, "a1", 0, Commit("a1", fmt.Sprintf("u%d", i), 150, 1, base))
				check.NoError(t, err)
				results <- ok
			}(i)
		}
		wg.Wait()
		close(results)

		winners := 0
		for ok := range results {
			if ok {
				winners++
			}
		}
		check.Equal(t, 1, winners)

		bids, err := store.ListBids(ctx, "a1", domain.BidCursor{}, 0)
		assert.NoError(t, err)
		check.Equal(t, 1, len(bids))
	})
}

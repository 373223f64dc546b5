package services

import (
	"bidding-engine/internal/domain"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestValidateBid(t *testing.T) {
	start := t0.Add(-time.Hour)
	end := t0.Add(time.Hour)
	snapshot := func(status domain.AuctionStatus, price int64, bidder string) domain.Auction {
		return domain.Auction{
			ID:              "a1",
			StartTime:       start,
			EndTime:         end,
			MinIncrement:    dec(10),
			StartPrice:      dec(100),
			CurrentPrice:    dec(price),
			HighestBidderID: bidder,
			Status:          status,
		}
	}

	cases := []struct {
		name    string
		auction domain.Auction
		now     time.Time
		bidder  string
		amount  decimal.Decimal
		want    domain.RejectionKind
	}{
		{"accept at minimum", snapshot(domain.AuctionActive, 100, ""), t0, "u1", dec(110), ""},
		{"accept above minimum", snapshot(domain.AuctionActive, 110, "u1"), t0, "u2", dec(500), ""},
		{"accept lazily active", snapshot(domain.AuctionScheduled, 100, ""), t0, "u1", dec(110), ""},
		{"not started", snapshot(domain.AuctionScheduled, 100, ""), start.Add(-time.Nanosecond), "u1", dec(110), domain.RejectAuctionNotActive},
		{"cancelled", snapshot(domain.AuctionCancelled, 100, ""), t0, "u1", dec(110), domain.RejectAuctionNotActive},
		{"completed", snapshot(domain.AuctionCompleted, 100, ""), t0, "u1", dec(110), domain.RejectAuctionNotActive},
		{"ended at boundary", snapshot(domain.AuctionActive, 100, ""), end, "u1", dec(110), domain.RejectAuctionEnded},
		{"ended unswept scheduled", snapshot(domain.AuctionScheduled, 100, ""), end.Add(time.Minute), "u1", dec(110), domain.RejectAuctionEnded},
		{"too low", snapshot(domain.AuctionActive, 100, ""), t0, "u1", dec(109), domain.RejectBidTooLow},
		{"equal to current", snapshot(domain.AuctionActive, 100, ""), t0, "u1", dec(100), domain.RejectBidTooLow},
		{"zero", snapshot(domain.AuctionActive, 0, ""), t0, "u1", dec(0), domain.RejectBidTooLow},
		{"too low beats highest bidder", snapshot(domain.AuctionActive, 110, "u1"), t0, "u1", dec(115), domain.RejectBidTooLow},
		{"already highest", snapshot(domain.AuctionActive, 110, "u1"), t0, "u1", dec(130), domain.RejectAlreadyHighestBidder},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := ValidateBid(tc.auction, tc.now, tc.bidder, tc.amount)
			if tc.want == "" {
				check.True(t, decision.Accepted())
				check.True(t, decision.NewPrice.Equal(tc.amount))
				return
			}
			if decision.Accepted() {
				t.Fatalf("expected %s, bid was accepted", tc.want)
			}
			check.Equal(t, tc.want, decision.Rejection.Kind)
			check.True(t, decision.Rejection.MinimumAcceptable.Equal(tc.auction.MinimumNextBid()))
			check.True(t, decision.Rejection.CurrentPrice.Equal(tc.auction.CurrentPrice))
		})
	}
}

func TestValidateBidDecimalPrecision(t *testing.T) {
	auction := domain.Auction{
		StartTime:    t0.Add(-time.Hour),
		EndTime:      t0.Add(time.Hour),
		MinIncrement: decimal.RequireFromString("0.10"),
		CurrentPrice: decimal.RequireFromString("0.20"),
		Status:       domain.AuctionActive,
	}

	check.True(t, ValidateBid(auction, t0, "u1", decimal.RequireFromString("0.30")).Accepted())
	check.False(t, ValidateBid(auction, t0, "u1", decimal.RequireFromString("0.29")).Accepted())
}

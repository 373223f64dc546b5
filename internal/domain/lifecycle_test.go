package domain

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestDeriveStatus(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	at := func(status AuctionStatus) Auction {
		return Auction{StartTime: start, EndTime: end, Status: status}
	}

	cases := []struct {
		name    string
		auction Auction
		now     time.Time
		want    AuctionStatus
	}{
		{"before start", at(AuctionScheduled), start.Add(-time.Second), AuctionScheduled},
		{"at start", at(AuctionScheduled), start, AuctionActive},
		{"just before end", at(AuctionActive), end.Add(-time.Millisecond), AuctionActive},
		{"at end", at(AuctionActive), end, AuctionCompleted},
		{"scheduled past end", at(AuctionScheduled), end.Add(time.Hour), AuctionCompleted},
		{"cancelled stays cancelled", at(AuctionCancelled), start.Add(time.Minute), AuctionCancelled},
		{"completed never goes back", at(AuctionCompleted), start.Add(-time.Hour), AuctionCompleted},
		{"active never goes back", at(AuctionActive), start.Add(-time.Hour), AuctionActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			check.Equal(t, tc.want, DeriveStatus(tc.auction, tc.now))
		})
	}
}

func TestNextStep(t *testing.T) {
	next, ok := NextStep(AuctionScheduled, AuctionCompleted)
	check.True(t, ok)
	check.Equal(t, AuctionActive, next)

	next, ok = NextStep(AuctionActive, AuctionCompleted)
	check.True(t, ok)
	check.Equal(t, AuctionCompleted, next)

	_, ok = NextStep(AuctionCompleted, AuctionCompleted)
	check.False(t, ok)
	_, ok = NextStep(AuctionCancelled, AuctionCompleted)
	check.False(t, ok)

	check.False(t, CanTransition(AuctionCompleted, AuctionCancelled))
	check.False(t, CanTransition(AuctionActive, AuctionScheduled))
	check.True(t, CanTransition(AuctionScheduled, AuctionCancelled))
}

func TestBidCursorAfter(t *testing.T) {
	ts := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	bid := Bid{Timestamp: ts, Sequence: 3}

	check.True(t, BidCursor{}.After(bid))
	check.True(t, BidCursor{Sequence: 2}.After(bid))
	check.False(t, BidCursor{Sequence: 3}.After(bid))
	check.False(t, BidCursor{Timestamp: ts}.After(bid))
	check.True(t, BidCursor{Timestamp: ts.Add(-time.Nanosecond)}.After(bid))
}

func TestRejectionMessages(t *testing.T) {
	r := Rejection{Kind: RejectBidTooLow, MinimumAcceptable: decimal.NewFromInt(160)}
	check.Equal(t, "bid too low, minimum acceptable amount is 160", r.Error())
	check.True(t, r.Retryable())

	busy := Rejection{Kind: RejectBusy, Attempts: 6}
	check.Equal(t, "auction busy, gave up after 6 attempts", busy.Message())

	check.False(t, Rejection{Kind: RejectAuctionNotActive}.Retryable())
	check.Equal(t, "cancelled", AuctionCancelled.String())
}

func TestExceedsScale(t *testing.T) {
	cases := []struct {
		amount string
		scale  int32
		want   bool
	}{
		{"110", 4, false},
		{"110.0001", 4, false},
		{"110.00005", 4, true},
		{"0.00001", 4, true},
		{"1.50000", 1, false},
		{"1.55", 1, true},
		{"7", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			check.Equal(t, tc.want, ExceedsScale(decimal.RequireFromString(tc.amount), tc.scale))
		})
	}
}

package events

import (
	"bidding-engine/internal/domain"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestBidKeepsNanosecondTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	bid := domain.Bid{
		ID:        "bid_1",
		AuctionID: "auc_1",
		BidderID:  "u1",
		Amount:    decimal.RequireFromString("110.50"),
		Timestamp: ts,
		Sequence:  4,
	}

	data, err := EncodeBid(bid)
	assert.NoError(t, err)

	got, err := DecodeBid(data)
	assert.NoError(t, err)
	check.True(t, got.Timestamp.Equal(ts))
	check.Equal(t, "110.5", got.Amount.String())
	check.Equal(t, int64(4), got.Sequence)
	check.Equal(t, "u1", got.BidderID)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00})
	check.Error(t, err)
}

func TestEventCarriesReason(t *testing.T) {
	data, err := EncodeEvent(&domain.AuctionEvent{
		Type:      domain.EventAuctionCancelled,
		AuctionID: "auc_1",
		Reason:    "duplicate listing",
		Version:   3,
		Timestamp: time.Unix(0, 42).UTC(),
	})
	assert.NoError(t, err)

	event, err := DecodeEvent(data)
	assert.NoError(t, err)
	check.Equal(t, domain.EventAuctionCancelled, event.Type)
	check.Equal(t, "duplicate listing", event.Reason)
	check.Equal(t, int64(3), event.Version)
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type RejectionKind string

const (
	RejectAuctionNotActive     RejectionKind = "auction_not_active"
	RejectAuctionEnded         RejectionKind = "auction_ended"
	RejectBidTooLow            RejectionKind = "bid_too_low"
	RejectAlreadyHighestBidder RejectionKind = "already_highest_bidder"
	RejectBusy                 RejectionKind = "busy"
	RejectNotFound             RejectionKind = "not_found"
)

// Rejection is a business outcome, not a fault. It carries enough state for a
// client to decide how to retry without re-fetching the auction.
type Rejection struct {
	Kind              RejectionKind
	Status            AuctionStatus
	CurrentPrice      decimal.Decimal
	MinimumAcceptable decimal.Decimal
	EndTime           time.Time
	Attempts          int
}

// Retryable reports whether resubmitting (possibly with a new amount) can succeed.
func (r Rejection) Retryable() bool {
	return r.Kind == RejectBidTooLow || r.Kind == RejectBusy
}

func (r Rejection) Message() string {
	switch r.Kind {
	case RejectAuctionNotActive:
		return fmt.Sprintf("auction is not active (status %s)", r.Status)
	case RejectAuctionEnded:
		return fmt.Sprintf("auction ended at %s", r.EndTime.Format(time.RFC3339Nano))
	case RejectBidTooLow:
		return fmt.Sprintf("bid too low, minimum acceptable amount is %s", r.MinimumAcceptable.String())
	case RejectAlreadyHighestBidder:
		return "bidder already holds the highest bid"
	case RejectBusy:
		return fmt.Sprintf("auction busy, gave up after %d attempts", r.Attempts)
	case RejectNotFound:
		return "auction not found"
	default:
		return string(r.Kind)
	}
}

func (r Rejection) Error() string {
	return r.Message()
}

// BidResult is the outcome of PlaceBid: either Accepted or a Rejection.
type BidResult struct {
	Accepted        bool
	NewPrice        decimal.Decimal
	Version         int64
	IsHighestBidder bool
	Bid             *Bid
	Rejection       *Rejection
}

func Accepted(bid Bid, version int64) BidResult {
	return BidResult{
		Accepted:        true,
		NewPrice:        bid.Amount,
		Version:         version,
		IsHighestBidder: true,
		Bid:             &bid,
	}
}

func Rejected(r Rejection) BidResult {
	return BidResult{Rejection: &r}
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auction is the mutable record owned by the AuctionStore. Only CurrentPrice,
// HighestBidderID, Status, CancelReason and Version change after creation.
type Auction struct {
	ID              string
	ProductRef      string
	StartTime       time.Time
	EndTime         time.Time
	MinIncrement    decimal.Decimal
	StartPrice      decimal.Decimal
	CurrentPrice    decimal.Decimal
	HighestBidderID string
	Status          AuctionStatus
	CancelReason    string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasBids reports whether at least one bid has been accepted.
func (a Auction) HasBids() bool {
	return a.HighestBidderID != ""
}

// MinimumNextBid is the smallest amount the validator would accept right now.
func (a Auction) MinimumNextBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinIncrement)
}

type AuctionStatus int

const (
	AuctionScheduled AuctionStatus = iota
	AuctionActive
	AuctionCompleted
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionScheduled:
		return "scheduled"
	case AuctionActive:
		return "active"
	case AuctionCompleted:
		return "completed"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition or bid is possible.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionCompleted || s == AuctionCancelled
}

// Bid is an accepted bid. Rejected attempts are never stored.
type Bid struct {
	ID        string          `cbor:"1,keyasint" json:"id"`
	AuctionID string          `cbor:"2,keyasint" json:"auction_id"`
	BidderID  string          `cbor:"3,keyasint" json:"bidder_id"`
	Amount    decimal.Decimal `cbor:"4,keyasint" json:"amount"`
	Timestamp time.Time       `cbor:"5,keyasint" json:"timestamp"`
	// Sequence is the auction version this bid committed, strictly increasing per auction.
	Sequence int64 `cbor:"6,keyasint" json:"sequence"`
}

// BidCommit is everything a single CompareAndSwap applies atomically.
type BidCommit struct {
	NewPrice   decimal.Decimal
	NewBidder  string
	NewVersion int64
	Bid        Bid
}

// BidCursor marks a position in an auction's bid history.
type BidCursor struct {
	Timestamp time.Time
	Sequence  int64
}

func (c BidCursor) IsZero() bool {
	return c.Sequence == 0 && c.Timestamp.IsZero()
}

// After reports whether b comes strictly after the cursor position.
func (c BidCursor) After(b Bid) bool {
	if c.Sequence > 0 {
		return b.Sequence > c.Sequence
	}
	if !c.Timestamp.IsZero() {
		return b.Timestamp.After(c.Timestamp)
	}
	return true
}

type BidPage struct {
	Bids       []Bid
	NextCursor *BidCursor
}

// AuctionState is the read model returned to callers; Status is always derived.
type AuctionState struct {
	AuctionID       string
	ProductRef      string
	Status          AuctionStatus
	CurrentPrice    decimal.Decimal
	MinIncrement    decimal.Decimal
	MinimumNextBid  decimal.Decimal
	StartTime       time.Time
	EndTime         time.Time
	HighestBidderID string
	CancelReason    string
	Version         int64
}

// AuctionEvent is pushed to the notification layer after a commit.
type AuctionEvent struct {
	Type      AuctionEventType `cbor:"1,keyasint" json:"type"`
	AuctionID string           `cbor:"2,keyasint" json:"auction_id"`
	BidderID  string           `cbor:"3,keyasint,omitempty" json:"bidder_id,omitempty"`
	Amount    decimal.Decimal  `cbor:"4,keyasint" json:"amount"`
	Version   int64            `cbor:"5,keyasint" json:"version"`
	Reason    string           `cbor:"6,keyasint,omitempty" json:"reason,omitempty"`
	Timestamp time.Time        `cbor:"7,keyasint" json:"timestamp"`
}

type AuctionEventType string

const (
	EventBidAccepted      AuctionEventType = "bid_accepted"
	EventAuctionStarted   AuctionEventType = "auction_started"
	EventAuctionCompleted AuctionEventType = "auction_completed"
	EventAuctionCancelled AuctionEventType = "auction_cancelled"
)

// Package dto holds the JSON shapes shared by the HTTP and websocket fronts.
package dto

import (
	"bidding-engine/internal/domain"
	"time"

	"github.com/shopspring/decimal"
)

type RejectionResponse struct {
	Kind              domain.RejectionKind `json:"kind"`
	Message           string               `json:"message"`
	Retryable         bool                 `json:"retryable"`
	Status            string               `json:"status,omitempty"`
	CurrentPrice      *decimal.Decimal     `json:"current_price,omitempty"`
	MinimumAcceptable *decimal.Decimal     `json:"minimum_acceptable,omitempty"`
	EndTime           *time.Time           `json:"end_time,omitempty"`
	Attempts          int                  `json:"attempts,omitempty"`
}

type BidResultResponse struct {
	Accepted        bool               `json:"accepted"`
	NewPrice        *decimal.Decimal   `json:"new_price,omitempty"`
	Version         int64              `json:"version,omitempty"`
	IsHighestBidder bool               `json:"is_highest_bidder"`
	Bid             *domain.Bid        `json:"bid,omitempty"`
	Rejection       *RejectionResponse `json:"rejection,omitempty"`
}

func BidResult(res domain.BidResult) BidResultResponse {
	out := BidResultResponse{
		Accepted:        res.Accepted,
		Version:         res.Version,
		IsHighestBidder: res.IsHighestBidder,
		Bid:             res.Bid,
	}
	if res.Accepted {
		price := res.NewPrice
		out.NewPrice = &price
	}
	if r := res.Rejection; r != nil {
		rej := &RejectionResponse{
			Kind:      r.Kind,
			Message:   r.Message(),
			Retryable: r.Retryable(),
			Attempts:  r.Attempts,
		}
		// NotFound carries no auction state.
		if r.Kind != domain.RejectNotFound {
			current, minimum, end := r.CurrentPrice, r.MinimumAcceptable, r.EndTime
			rej.Status = r.Status.String()
			rej.CurrentPrice = &current
			rej.MinimumAcceptable = &minimum
			rej.EndTime = &end
		}
		out.Rejection = rej
	}
	return out
}

type AuctionStateResponse struct {
	AuctionID       string          `json:"auction_id"`
	ProductRef      string          `json:"product_ref,omitempty"`
	Status          string          `json:"status"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MinIncrement    decimal.Decimal `json:"min_increment"`
	MinimumNextBid  decimal.Decimal `json:"minimum_next_bid"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	HighestBidderID string          `json:"highest_bidder_id,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	Version         int64           `json:"version"`
}

func AuctionState(s domain.AuctionState) AuctionStateResponse {
	return AuctionStateResponse{
		AuctionID:       s.AuctionID,
		ProductRef:      s.ProductRef,
		Status:          s.Status.String(),
		CurrentPrice:    s.CurrentPrice,
		MinIncrement:    s.MinIncrement,
		MinimumNextBid:  s.MinimumNextBid,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		HighestBidderID: s.HighestBidderID,
		CancelReason:    s.CancelReason,
		Version:         s.Version,
	}
}

type BidPageResponse struct {
	Bids       []domain.Bid `json:"bids"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

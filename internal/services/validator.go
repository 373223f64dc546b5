package services

import (
	"bidding-engine/internal/domain"
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the validator verdict: Rejection is nil when the bid is accepted
// at NewPrice.
type Decision struct {
	NewPrice  decimal.Decimal
	Rejection *domain.Rejection
}

func (d Decision) Accepted() bool {
	return d.Rejection == nil
}

// ValidateBid applies the bidding rules in order against a snapshot read at now.
// It never fails; every outcome is either an acceptance or a rejection value.
func ValidateBid(auction domain.Auction, now time.Time, bidderID string, amount decimal.Decimal) Decision {
	status := domain.DeriveStatus(auction, now)
	reject := func(kind domain.RejectionKind) Decision {
		return Decision{Rejection: &domain.Rejection{
			Kind:              kind,
			Status:            status,
			CurrentPrice:      auction.CurrentPrice,
			MinimumAcceptable: auction.MinimumNextBid(),
			EndTime:           auction.EndTime,
		}}
	}

	if status != domain.AuctionActive {
		// End time passed but nothing has stamped Completed yet: the boundary
		// race, reported separately so the caller knows time ran out.
		if status == domain.AuctionCompleted && !auction.Status.Terminal() {
			return reject(domain.RejectAuctionEnded)
		}
		return reject(domain.RejectAuctionNotActive)
	}
	if !now.Before(auction.EndTime) {
		return reject(domain.RejectAuctionEnded)
	}
	if amount.LessThan(auction.MinimumNextBid()) {
		return reject(domain.RejectBidTooLow)
	}
	if auction.HasBids() && bidderID == auction.HighestBidderID {
		return reject(domain.RejectAlreadyHighestBidder)
	}
	return Decision{NewPrice: amount}
}

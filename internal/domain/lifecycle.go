package domain

import "time"

// DeriveStatus resolves the status callers should see at now. Terminal persisted
// states win; otherwise time moves the auction forward, never backward.
func DeriveStatus(a Auction, now time.Time) AuctionStatus {
	if a.Status.Terminal() {
		return a.Status
	}
	derived := AuctionScheduled
	switch {
	case !now.Before(a.EndTime):
		derived = AuctionCompleted
	case !now.Before(a.StartTime):
		derived = AuctionActive
	}
	if derived < a.Status {
		return a.Status
	}
	return derived
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to AuctionStatus) bool {
	switch from {
	case AuctionScheduled:
		return to == AuctionActive || to == AuctionCancelled
	case AuctionActive:
		return to == AuctionCompleted || to == AuctionCancelled
	default:
		return false
	}
}

// NextStep returns the next forward status on the way from persisted to target,
// so the sweeper walks Scheduled -> Active -> Completed one CAS at a time.
func NextStep(persisted, target AuctionStatus) (AuctionStatus, bool) {
	if persisted == target || persisted.Terminal() {
		return persisted, false
	}
	if persisted == AuctionScheduled && target == AuctionCompleted {
		return AuctionActive, true
	}
	if CanTransition(persisted, target) {
		return target, true
	}
	return persisted, false
}

// State projects the auction into the read model at now.
func (a Auction) State(now time.Time) AuctionState {
	return AuctionState{
		AuctionID:       a.ID,
		ProductRef:      a.ProductRef,
		Status:          DeriveStatus(a, now),
		CurrentPrice:    a.CurrentPrice,
		MinIncrement:    a.MinIncrement,
		MinimumNextBid:  a.MinimumNextBid(),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		HighestBidderID: a.HighestBidderID,
		CancelReason:    a.CancelReason,
		Version:         a.Version,
	}
}

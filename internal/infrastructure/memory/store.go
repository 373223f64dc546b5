package memory

import (
	"bidding-engine/internal/domain"
	"context"
	"sort"
	"sync"
)

type auctionRecord struct {
	mu      sync.Mutex
	auction domain.Auction
	bids    []domain.Bid
}

// AuctionStore keeps auctions in process. Each auction has its own lock; the
// map lock only guards membership.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*auctionRecord
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*auctionRecord),
	}
}

func (s *AuctionStore) record(id string) (*auctionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.auctions[id]
	return rec, ok
}

func (s *AuctionStore) CreateAuction(_ context.Context, auction domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.ID]; exists {
		return domain.ErrAuctionExists
	}
	s.auctions[auction.ID] = &auctionRecord{auction: auction}
	return nil
}

func (s *AuctionStore) LoadSnapshot(_ context.Context, auctionID string) (domain.Auction, error) {
	rec, ok := s.record(auctionID)
	if !ok {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.auction, nil
}

func (s *AuctionStore) CompareAndSwap(_ context.Context, auctionID string, expectedVersion int64, commit domain.BidCommit) (bool, error) {
	rec, ok := s.record(auctionID)
	if !ok {
		return false, domain.ErrAuctionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Version != expectedVersion {
		return false, nil
	}
	rec.auction.CurrentPrice = commit.NewPrice
	rec.auction.HighestBidderID = commit.NewBidder
	rec.auction.Version = commit.NewVersion
	rec.auction.UpdatedAt = commit.Bid.Timestamp
	rec.bids = append(rec.bids, commit.Bid)
	return true, nil
}

func (s *AuctionStore) CompareAndSwapStatus(_ context.Context, auctionID string, expected, next domain.AuctionStatus, reason string) (bool, error) {
	rec, ok := s.record(auctionID)
	if !ok {
		return false, domain.ErrAuctionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Status != expected {
		return false, nil
	}
	rec.auction.Status = next
	rec.auction.Version++
	if reason != "" {
		rec.auction.CancelReason = reason
	}
	return true, nil
}

func (s *AuctionStore) ListBids(_ context.Context, auctionID string, after domain.BidCursor, limit int) ([]domain.Bid, error) {
	rec, ok := s.record(auctionID)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	var out []domain.Bid
	for _, bid := range rec.bids {
		if !after.After(bid) {
			continue
		}
		out = append(out, bid)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *AuctionStore) ListAuctionsByStatus(_ context.Context, statuses ...domain.AuctionStatus) ([]domain.Auction, error) {
	want := make(map[domain.AuctionStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	records := make([]*auctionRecord, 0, len(s.auctions))
	for _, rec := range s.auctions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var out []domain.Auction
	for _, rec := range records {
		rec.mu.Lock()
		a := rec.auction
		rec.mu.Unlock()
		if want[a.Status] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

package services

import (
	"bidding-engine/internal/clock"
	"bidding-engine/internal/domain"
	"bidding-engine/internal/infrastructure/memory"
	"bidding-engine/pkg/logger"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AuctionEvent
	err    error
}

func (p *recordingPublisher) PublishAuctionEvent(_ context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return p.err
}

func (p *recordingPublisher) types() []domain.AuctionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.AuctionEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// hookStore runs beforeCAS once, just ahead of the first bid CAS, to stage a
// competing write between a snapshot read and its commit.
type hookStore struct {
	domain.AuctionStore
	once      sync.Once
	beforeCAS func()
}

func (s *hookStore) CompareAndSwap(ctx context.Context, id string, expected int64, commit domain.BidCommit) (bool, error) {
	s.once.Do(s.beforeCAS)
	return s.AuctionStore.CompareAndSwap(ctx, id, expected, commit)
}

// contendedStore loses every CAS.
type contendedStore struct {
	domain.AuctionStore
	calls int
}

func (s *contendedStore) CompareAndSwap(context.Context, string, int64, domain.BidCommit) (bool, error) {
	s.calls++
	return false, nil
}

type brokenStore struct {
	domain.AuctionStore
	loads int
}

var errUnreachable = errors.New("store unreachable")

func (s *brokenStore) LoadSnapshot(context.Context, string) (domain.Auction, error) {
	s.loads++
	return domain.Auction{}, errUnreachable
}

type fixture struct {
	store   *memory.AuctionStore
	clock   *clock.Manual
	events  *recordingPublisher
	bids    *BidService
	manager *AuctionManager
	sweeper *LifecycleSweeper
}

func newFixture(t *testing.T, opts ...BidServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewAuctionStore(),
		clock:  clock.NewManual(t0),
		events: &recordingPublisher{},
	}
	log := logger.NewNop()
	opts = append([]BidServiceOption{WithBidEventPublisher(f.events)}, opts...)
	f.bids = NewBidService(f.store, f.clock, log, opts...)
	f.manager = NewAuctionManager(f.store, f.clock, f.events, nil, log)
	f.sweeper = NewLifecycleSweeper(f.store, f.clock, f.events, log)
	return f
}

// openAuction creates an auction that started a minute before t0 and ends an
// hour after it.
func (f *fixture) openAuction(t *testing.T, id string, startPrice, increment int64) domain.Auction {
	t.Helper()
	auction, err := f.manager.CreateAuction(context.Background(), CreateAuctionRequest{
		ID:           id,
		ProductRef:   "sku-" + id,
		StartTime:    t0.Add(-time.Minute),
		EndTime:      t0.Add(time.Hour),
		StartPrice:   dec(startPrice),
		MinIncrement: decimal.NewNullDecimal(dec(increment)),
	})
	assert.NoError(t, err)
	return auction
}

package services

import (
	"bidding-engine/internal/clock"
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// maxSteps covers Scheduled -> Active -> Completed plus a conflict reload.
const maxSteps = 4

type SweepReport struct {
	Scanned   int
	Started   int
	Completed int
	Skipped   int
	Failed    int
}

// LifecycleSweeper stamps time-derived transitions into the store. Every write
// is a status CAS, so concurrent sweepers converge and repeats are no-ops.
type LifecycleSweeper struct {
	cron       *cron.Cron
	store      domain.AuctionStore
	clock      clock.Clock
	publisher  domain.EventPublisher
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
}

func NewLifecycleSweeper(store domain.AuctionStore, clk clock.Clock, publisher domain.EventPublisher,
	log logger.Logger) *LifecycleSweeper {
	return &LifecycleSweeper{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		store:     store,
		clock:     clk,
		publisher: publisher,
		log:       log,
	}
}

// WithLeaderElection restricts scheduled sweeps to the elected instance.
func (s *LifecycleSweeper) WithLeaderElection(leader domain.LeaderElection, instanceID string) *LifecycleSweeper {
	s.leader = leader
	s.instanceID = instanceID
	return s
}

func (s *LifecycleSweeper) Start(ctx context.Context, schedule string) error {
	s.log.Info("Starting lifecycle sweeper", "schedule", schedule)

	_, err := s.cron.AddFunc(schedule, func() {
		s.runScheduled(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", schedule, err)
	}

	s.cron.Start()
	return nil
}

func (s *LifecycleSweeper) Stop() error {
	s.log.Info("Stopping lifecycle sweeper")
	<-s.cron.Stop().Done()
	return nil
}

func (s *LifecycleSweeper) runScheduled(ctx context.Context) {
	if !s.isLeader(ctx) {
		return
	}
	report, err := s.SweepOnce(ctx)
	if err != nil {
		s.log.Error("Sweep failed", "error", err)
		return
	}
	if report.Started+report.Completed+report.Failed > 0 {
		s.log.Info("Sweep finished", "scanned", report.Scanned, "started", report.Started,
			"completed", report.Completed, "skipped", report.Skipped, "failed", report.Failed)
	}
}

func (s *LifecycleSweeper) isLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Warn("Leader check failed", "instance_id", s.instanceID, "error", err)
		return false
	}
	if isLeader {
		return true
	}
	became, err := s.leader.BecomeLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Warn("Leader election failed", "instance_id", s.instanceID, "error", err)
		return false
	}
	return became
}

// SweepOnce advances every Scheduled or Active auction whose derived status
// has moved on.
func (s *LifecycleSweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	auctions, err := s.store.ListAuctionsByStatus(ctx, domain.AuctionScheduled, domain.AuctionActive)
	if err != nil {
		return report, fmt.Errorf("list open auctions: %w", err)
	}

	now := s.clock.Now()
	for _, auction := range auctions {
		report.Scanned++
		if domain.DeriveStatus(auction, now) == auction.Status {
			continue
		}

		steps, err := s.advance(ctx, auction)
		if err != nil {
			report.Failed++
			s.log.Error("Failed to advance auction", "auction_id", auction.ID, "error", err)
			continue
		}
		if len(steps) == 0 {
			report.Skipped++
			continue
		}
		for _, st := range steps {
			switch st {
			case domain.AuctionActive:
				report.Started++
			case domain.AuctionCompleted:
				report.Completed++
			}
		}
	}
	return report, nil
}

// Finalize brings one auction's persisted status up to its derived status and
// returns the result. Calling it again is a no-op.
func (s *LifecycleSweeper) Finalize(ctx context.Context, auctionID string) (domain.AuctionStatus, error) {
	auction, err := s.store.LoadSnapshot(ctx, auctionID)
	if err != nil {
		return 0, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	if _, err := s.advance(ctx, auction); err != nil {
		return 0, err
	}
	final, err := s.store.LoadSnapshot(ctx, auctionID)
	if err != nil {
		return 0, fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	return final.Status, nil
}

// advance walks the auction forward one status CAS at a time. A lost CAS means
// someone else moved it; the loop reloads and recomputes from there.
func (s *LifecycleSweeper) advance(ctx context.Context, auction domain.Auction) ([]domain.AuctionStatus, error) {
	var applied []domain.AuctionStatus
	for i := 0; i < maxSteps; i++ {
		target := domain.DeriveStatus(auction, s.clock.Now())
		next, ok := domain.NextStep(auction.Status, target)
		if !ok {
			return applied, nil
		}

		swapped, err := s.store.CompareAndSwapStatus(ctx, auction.ID, auction.Status, next, "")
		if err != nil {
			return applied, fmt.Errorf("advance auction %s to %s: %w", auction.ID, next, err)
		}

		reloaded, err := s.store.LoadSnapshot(ctx, auction.ID)
		if err != nil {
			return applied, fmt.Errorf("load auction %s: %w", auction.ID, err)
		}
		if swapped {
			applied = append(applied, next)
			s.emitTransition(ctx, reloaded, next)
		}
		auction = reloaded
	}
	return applied, nil
}

func (s *LifecycleSweeper) emitTransition(ctx context.Context, auction domain.Auction, status domain.AuctionStatus) {
	eventType := domain.EventAuctionStarted
	if status == domain.AuctionCompleted {
		eventType = domain.EventAuctionCompleted
		s.log.Info("Auction completed", "auction_id", auction.ID,
			"winner", auction.HighestBidderID, "final_price", auction.CurrentPrice.String())
	} else {
		s.log.Info("Auction started", "auction_id", auction.ID)
	}

	publishEvent(ctx, s.publisher, s.log, &domain.AuctionEvent{
		Type:      eventType,
		AuctionID: auction.ID,
		BidderID:  auction.HighestBidderID,
		Amount:    auction.CurrentPrice,
		Version:   auction.Version,
		Timestamp: s.clock.Now(),
	})
}

package postgres

import (
	"bidding-engine/internal/domain"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Numerics travel as text both ways so no precision is lost to float codecs.
const auctionColumns = `id, product_ref, start_time, end_time, min_increment::text, start_price::text,
current_price::text, highest_bidder, status, cancel_reason, version, created_at, updated_at`

type AuctionStore struct {
	pool *pgxpool.Pool
}

func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction domain.Auction) error {
	const query = `
INSERT INTO auctions (id, product_ref, start_time, end_time, min_increment, start_price,
    current_price, highest_bidder, status, cancel_reason, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		auction.ID, auction.ProductRef, auction.StartTime, auction.EndTime,
		auction.MinIncrement.String(), auction.StartPrice.String(), auction.CurrentPrice.String(),
		auction.HighestBidderID, int16(auction.Status), auction.CancelReason,
		auction.Version, auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAuctionExists
		}
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

func scanAuction(row pgx.Row) (domain.Auction, error) {
	var (
		a                            domain.Auction
		minIncrement, start, current string
		status                       int16
	)
	err := row.Scan(&a.ID, &a.ProductRef, &a.StartTime, &a.EndTime, &minIncrement, &start,
		&current, &a.HighestBidderID, &status, &a.CancelReason, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Auction{}, err
	}

	if a.MinIncrement, err = decimal.NewFromString(minIncrement); err != nil {
		return domain.Auction{}, fmt.Errorf("parse min_increment: %w", err)
	}
	if a.StartPrice, err = decimal.NewFromString(start); err != nil {
		return domain.Auction{}, fmt.Errorf("parse start_price: %w", err)
	}
	if a.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return domain.Auction{}, fmt.Errorf("parse current_price: %w", err)
	}
	a.Status = domain.AuctionStatus(status)
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	return a, nil
}

func (s *AuctionStore) LoadSnapshot(ctx context.Context, auctionID string) (domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	auction, err := scanAuction(s.pool.QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrAuctionNotFound
		}
		return domain.Auction{}, fmt.Errorf("load auction: %w", err)
	}
	return auction, nil
}

func (s *AuctionStore) CompareAndSwap(ctx context.Context, auctionID string, expectedVersion int64, commit domain.BidCommit) (bool, error) {
	committed := false
	err := withTx(ctx, s.pool, func(ctx context.Context) error {
		tx := txFromContext(ctx)

		tag, err := tx.Exec(ctx, `
UPDATE auctions
SET current_price = $1::numeric, highest_bidder = $2, version = $3, updated_at = $4
WHERE id = $5 AND version = $6`,
			commit.NewPrice.String(), commit.NewBidder, commit.NewVersion, commit.Bid.Timestamp,
			auctionID, expectedVersion)
		if err != nil {
			return fmt.Errorf("update auction price: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errVersionConflict
		}

		bid := commit.Bid
		if _, err := tx.Exec(ctx, `
INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, sequence)
VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
			bid.ID, auctionID, bid.BidderID, bid.Amount.String(), bid.Timestamp, bid.Sequence); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
		committed = true
		return nil
	})
	if errors.Is(err, errVersionConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return committed, nil
}

func (s *AuctionStore) CompareAndSwapStatus(ctx context.Context, auctionID string, expected, next domain.AuctionStatus, reason string) (bool, error) {
	const query = `
UPDATE auctions
SET status = $1,
    cancel_reason = CASE WHEN $2 = '' THEN cancel_reason ELSE $2 END,
    version = version + 1,
    updated_at = NOW()
WHERE id = $3 AND status = $4`

	tag, err := s.pool.Exec(ctx, query, int16(next), reason, auctionID, int16(expected))
	if err != nil {
		return false, fmt.Errorf("update auction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *AuctionStore) ListBids(ctx context.Context, auctionID string, after domain.BidCursor, limit int) ([]domain.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount::text, placed_at, sequence FROM bids WHERE auction_id = $1`
	args := []any{auctionID}

	switch {
	case after.Sequence > 0:
		args = append(args, after.Sequence)
		query += fmt.Sprintf(` AND sequence > $%d`, len(args))
	case !after.Timestamp.IsZero():
		args = append(args, after.Timestamp)
		query += fmt.Sprintf(` AND placed_at > $%d`, len(args))
	}
	query += ` ORDER BY sequence ASC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var (
			bid    domain.Bid
			amount string
		)
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &amount, &bid.Timestamp, &bid.Sequence); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		if bid.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse bid amount: %w", err)
		}
		bid.Timestamp = bid.Timestamp.UTC()
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func (s *AuctionStore) ListAuctionsByStatus(ctx context.Context, statuses ...domain.AuctionStatus) ([]domain.Auction, error) {
	codes := make([]int16, len(statuses))
	for i, st := range statuses {
		codes[i] = int16(st)
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ANY($1) ORDER BY end_time ASC`
	rows, err := s.pool.Query(ctx, query, codes)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

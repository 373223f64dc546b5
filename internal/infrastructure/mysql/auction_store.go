package mysql

import (
	"bidding-engine/internal/domain"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

//go:embed schema.sql
var schema string

const errDuplicateEntry = 1062

// MaxAmountScale is the fractional precision of the DECIMAL(20,4) money
// columns; MySQL silently rounds anything finer.
const MaxAmountScale = 4

const auctionColumns = `id, product_ref, start_time, end_time, min_increment, start_price, ` +
	`current_price, highest_bidder, status, cancel_reason, version, created_at, updated_at`

// AuctionStore keeps auctions and their bids in MySQL. The version column is
// the CAS guard; each bid CAS runs in one transaction with its bid insert.
type AuctionStore struct {
	db *sql.DB
}

func NewAuctionStore(db *sql.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *AuctionStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply mysql schema: %w", err)
		}
	}
	return nil
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.ProductRef, auction.StartTime, auction.EndTime,
		auction.MinIncrement, auction.StartPrice, auction.CurrentPrice,
		auction.HighestBidderID, int(auction.Status), auction.CancelReason,
		auction.Version, auction.CreatedAt, auction.UpdatedAt)
	if isDuplicateEntry(err) {
		return domain.ErrAuctionExists
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row scanner) (domain.Auction, error) {
	var auction domain.Auction
	var status int

	err := row.Scan(&auction.ID, &auction.ProductRef, &auction.StartTime, &auction.EndTime,
		&auction.MinIncrement, &auction.StartPrice, &auction.CurrentPrice,
		&auction.HighestBidderID, &status, &auction.CancelReason, &auction.Version,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return domain.Auction{}, err
	}

	auction.Status = domain.AuctionStatus(status)
	return auction, nil
}

func (s *AuctionStore) LoadSnapshot(ctx context.Context, auctionID string) (domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return auction, err
}

func (s *AuctionStore) CompareAndSwap(ctx context.Context, auctionID string, expectedVersion int64, commit domain.BidCommit) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE auctions
        SET current_price = ?, highest_bidder = ?, version = ?, updated_at = ?
        WHERE id = ? AND version = ?
    `, commit.NewPrice, commit.NewBidder, commit.NewVersion, commit.Bid.Timestamp,
		auctionID, expectedVersion)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	bid := commit.Bid
	_, err = tx.ExecContext(ctx, `
        INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, sequence)
        VALUES (?, ?, ?, ?, ?, ?)
    `, bid.ID, auctionID, bid.BidderID, bid.Amount, bid.Timestamp, bid.Sequence)
	if err != nil {
		return false, fmt.Errorf("insert bid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuctionStore) CompareAndSwapStatus(ctx context.Context, auctionID string, expected, next domain.AuctionStatus, reason string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if reason != "" {
		res, err = s.db.ExecContext(ctx, `
            UPDATE auctions
            SET status = ?, cancel_reason = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP(6)
            WHERE id = ? AND status = ?
        `, int(next), reason, auctionID, int(expected))
	} else {
		res, err = s.db.ExecContext(ctx, `
            UPDATE auctions
            SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP(6)
            WHERE id = ? AND status = ?
        `, int(next), auctionID, int(expected))
	}
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *AuctionStore) ListBids(ctx context.Context, auctionID string, after domain.BidCursor, limit int) ([]domain.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount, placed_at, sequence FROM bids WHERE auction_id = ?`
	args := []interface{}{auctionID}

	switch {
	case after.Sequence > 0:
		query += ` AND sequence > ?`
		args = append(args, after.Sequence)
	case !after.Timestamp.IsZero():
		query += ` AND placed_at > ?`
		args = append(args, after.Timestamp)
	}
	query += ` ORDER BY sequence ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount,
			&bid.Timestamp, &bid.Sequence); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func (s *AuctionStore) ListAuctionsByStatus(ctx context.Context, statuses ...domain.AuctionStatus) ([]domain.Auction, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = int(st)
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY end_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}

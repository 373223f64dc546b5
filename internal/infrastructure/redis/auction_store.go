package redis

import (
	"bidding-engine/internal/domain"
	"bidding-engine/internal/events"
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

func auctionKey(id string) string { return fmt.Sprintf("auction:%s", id) }

func bidsKey(id string) string { return fmt.Sprintf("auction:%s:bids", id) }

func statusKey(s domain.AuctionStatus) string { return fmt.Sprintf("auctions:status:%d", int(s)) }

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// Version check, price update and bid append happen in one script, so no
// client ever sees a moved price without its bid.
var casScript = redis.NewScript(`
local version = redis.call('HGET', KEYS[1], 'version')
if version == false then
    return -1
end
if version ~= ARGV[1] then
    return 0
end
redis.call('HSET', KEYS[1],
    'current_price', ARGV[2],
    'highest_bidder', ARGV[3],
    'version', ARGV[4],
    'updated_at', ARGV[5])
redis.call('RPUSH', KEYS[2], ARGV[6])
return 1
`)

var statusScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == false then
    return -1
end
if status ~= ARGV[1] then
    return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'version', 1)
if ARGV[3] ~= '' then
    redis.call('HSET', KEYS[1], 'cancel_reason', ARGV[3])
end
redis.call('SMOVE', KEYS[2], KEYS[3], ARGV[4])
return 1
`)

// AuctionStore keeps each auction in a hash, its bids in a CBOR-encoded list
// and a set per status for sweeps.
type AuctionStore struct {
	client *redis.Client
}

func NewAuctionStore(client *redis.Client) *AuctionStore {
	return &AuctionStore{client: client}
}

func nanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func (s *AuctionStore) CreateAuction(ctx context.Context, a domain.Auction) error {
	res, err := createScript.Run(ctx, s.client,
		[]string{auctionKey(a.ID), statusKey(a.Status)},
		a.ID,
		"product_ref", a.ProductRef,
		"start_time", nanos(a.StartTime),
		"end_time", nanos(a.EndTime),
		"min_increment", a.MinIncrement.String(),
		"start_price", a.StartPrice.String(),
		"current_price", a.CurrentPrice.String(),
		"highest_bidder", a.HighestBidderID,
		"status", int(a.Status),
		"cancel_reason", a.CancelReason,
		"version", a.Version,
		"created_at", nanos(a.CreatedAt),
		"updated_at", nanos(a.UpdatedAt),
	).Int64()
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}
	if res == 0 {
		return domain.ErrAuctionExists
	}
	return nil
}

func (s *AuctionStore) LoadSnapshot(ctx context.Context, auctionID string) (domain.Auction, error) {
	fields, err := s.client.HGetAll(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return domain.Auction{}, fmt.Errorf("load auction: %w", err)
	}
	if len(fields) == 0 {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return parseAuction(auctionID, fields)
}

func parseAuction(id string, f map[string]string) (domain.Auction, error) {
	a := domain.Auction{
		ID:              id,
		ProductRef:      f["product_ref"],
		HighestBidderID: f["highest_bidder"],
		CancelReason:    f["cancel_reason"],
	}

	var err error
	parseTime := func(field string) time.Time {
		if err != nil {
			return time.Time{}
		}
		var n int64
		n, err = strconv.ParseInt(f[field], 10, 64)
		if err != nil {
			err = fmt.Errorf("parse %s: %w", field, err)
		}
		return time.Unix(0, n).UTC()
	}
	parseDecimal := func(field string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var d decimal.Decimal
		d, err = decimal.NewFromString(f[field])
		if err != nil {
			err = fmt.Errorf("parse %s: %w", field, err)
		}
		return d
	}

	a.StartTime = parseTime("start_time")
	a.EndTime = parseTime("end_time")
	a.CreatedAt = parseTime("created_at")
	a.UpdatedAt = parseTime("updated_at")
	a.MinIncrement = parseDecimal("min_increment")
	a.StartPrice = parseDecimal("start_price")
	a.CurrentPrice = parseDecimal("current_price")
	if err != nil {
		return domain.Auction{}, err
	}

	status, err := strconv.Atoi(f["status"])
	if err != nil {
		return domain.Auction{}, fmt.Errorf("parse status: %w", err)
	}
	a.Status = domain.AuctionStatus(status)

	if a.Version, err = strconv.ParseInt(f["version"], 10, 64); err != nil {
		return domain.Auction{}, fmt.Errorf("parse version: %w", err)
	}
	return a, nil
}

func (s *AuctionStore) CompareAndSwap(ctx context.Context, auctionID string, expectedVersion int64, commit domain.BidCommit) (bool, error) {
	blob, err := events.EncodeBid(commit.Bid)
	if err != nil {
		return false, err
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{auctionKey(auctionID), bidsKey(auctionID)},
		strconv.FormatInt(expectedVersion, 10),
		commit.NewPrice.String(),
		commit.NewBidder,
		strconv.FormatInt(commit.NewVersion, 10),
		nanos(commit.Bid.Timestamp),
		blob,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("compare and swap: %w", err)
	}
	switch res {
	case -1:
		return false, domain.ErrAuctionNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (s *AuctionStore) CompareAndSwapStatus(ctx context.Context, auctionID string, expected, next domain.AuctionStatus, reason string) (bool, error) {
	res, err := statusScript.Run(ctx, s.client,
		[]string{auctionKey(auctionID), statusKey(expected), statusKey(next)},
		strconv.Itoa(int(expected)),
		strconv.Itoa(int(next)),
		reason,
		auctionID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("compare and swap status: %w", err)
	}
	if res == -1 {
		return false, domain.ErrAuctionNotFound
	}
	return res == 1, nil
}

func (s *AuctionStore) ListBids(ctx context.Context, auctionID string, after domain.BidCursor, limit int) ([]domain.Bid, error) {
	raw, err := s.client.LRange(ctx, bidsKey(auctionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}

	var bids []domain.Bid
	for _, item := range raw {
		bid, err := events.DecodeBid([]byte(item))
		if err != nil {
			return nil, err
		}
		if !after.After(bid) {
			continue
		}
		bids = append(bids, bid)
		if limit > 0 && len(bids) == limit {
			break
		}
	}
	return bids, nil
}

// ListAuctionsByStatus reads the status sets in one SUNION so an auction
// moving between two requested sets is seen once. Records whose status moved
// outside the requested set before the hash read are dropped.
func (s *AuctionStore) ListAuctionsByStatus(ctx context.Context, statuses ...domain.AuctionStatus) ([]domain.Auction, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	keys := make([]string, len(statuses))
	wanted := make(map[domain.AuctionStatus]bool, len(statuses))
	for i, st := range statuses {
		keys[i] = statusKey(st)
		wanted[st] = true
	}
	ids, err := s.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list auctions by status: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, auctionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load auctions: %w", err)
	}

	auctions := make([]domain.Auction, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		a, err := parseAuction(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if !wanted[a.Status] {
			continue
		}
		auctions = append(auctions, a)
	}
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].EndTime.Before(auctions[j].EndTime) })
	return auctions, nil
}

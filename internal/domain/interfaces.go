package domain

import (
	"context"
)

// AuctionStore is the sole persistence collaborator. CompareAndSwap and
// CompareAndSwapStatus are the only synchronization points of the engine.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction Auction) error
	LoadSnapshot(ctx context.Context, auctionID string) (Auction, error)
	// CompareAndSwap applies the price/bidder/version update and appends the bid
	// in one atomic unit, only if the stored version still equals expectedVersion.
	CompareAndSwap(ctx context.Context, auctionID string, expectedVersion int64, commit BidCommit) (bool, error)
	// CompareAndSwapStatus moves expected -> next and bumps the version, so any
	// bid CAS prepared against the old version fails.
	CompareAndSwapStatus(ctx context.Context, auctionID string, expected, next AuctionStatus, reason string) (bool, error)
	ListBids(ctx context.Context, auctionID string, after BidCursor, limit int) ([]Bid, error)
	ListAuctionsByStatus(ctx context.Context, statuses ...AuctionStatus) ([]Auction, error)
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	ReleaseConnection(conn WebSocketConnection) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}

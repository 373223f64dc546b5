package websocket

import (
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"sync"
)

// ConnectionManager tracks live sockets by auction and by bidder. A bidder
// holds at most one socket per auction; a newer one replaces the older.
type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	if previous, exists := cm.connections[auctionID][userID]; exists && previous != conn {
		cm.userConns[userID] = without(cm.userConns[userID], auctionID)
		if err := previous.Close(); err != nil {
			cm.log.Debug("Failed to close replaced connection", "user_id", userID, "auction_id", auctionID, "error", err)
		}
	}
	cm.connections[auctionID][userID] = conn
	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, userID)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}
	cm.dropUserConnection(userID, auctionID)

	cm.log.Info("Connection unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

// ReleaseConnection unregisters conn only if it is still the registered socket
// for its bidder and auction, so a replaced socket cannot evict its successor.
func (cm *ConnectionManager) ReleaseConnection(conn domain.WebSocketConnection) error {
	cm.mutex.RLock()
	current, exists := cm.connections[conn.AuctionID()][conn.UserID()]
	cm.mutex.RUnlock()
	if !exists || current != conn {
		return nil
	}
	return cm.UnregisterConnection(conn.UserID(), conn.AuctionID())
}

func (cm *ConnectionManager) dropUserConnection(userID, auctionID string) {
	remaining := without(cm.userConns[userID], auctionID)
	if len(remaining) == 0 {
		delete(cm.userConns, userID)
		return
	}
	cm.userConns[userID] = remaining
}

func without(conns []domain.WebSocketConnection, auctionID string) []domain.WebSocketConnection {
	var kept []domain.WebSocketConnection
	for _, c := range conns {
		if c.AuctionID() != auctionID {
			kept = append(kept, c)
		}
	}
	return kept
}

func (cm *ConnectionManager) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		for userID, conn := range auctionConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID,
					"auction_id", auctionID, "error", err)
			}
			cm.dropUserConnection(userID, auctionID)
		}
		delete(cm.connections, auctionID)
	}

	cm.log.Info("Connections closed for auction", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	if auctionConns, exists := cm.connections[auctionID]; exists {
		for _, conn := range auctionConns {
			connections = append(connections, conn)
		}
	}

	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return append([]domain.WebSocketConnection(nil), cm.userConns[userID]...)
}

// BroadcastToAuction sends to every watcher; one failing socket does not stop
// delivery to the rest.
func (cm *ConnectionManager) BroadcastToAuction(auctionID string, message interface{}) error {
	connections := cm.GetConnectionsForAuction(auctionID)
	cm.log.Debug("Broadcasting to auction", "auction_id", auctionID, "connections", len(connections))

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"auction_id", auctionID, "error", err)
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	for _, conn := range cm.GetConnectionsForUser(userID) {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}

	return nil
}

package websocket

import (
	"bidding-engine/internal/api/dto"
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BidPlacer is the slice of the bid service the socket front needs.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.BidResult, error)
	GetAuctionState(ctx context.Context, auctionID string) (domain.AuctionState, error)
}

type WebSocketHandler struct {
	bids        BidPlacer
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(bids BidPlacer, connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bids:        bids,
		connManager: connManager,
		log:         log,
	}
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

// HandleConnection serves /ws/auction/{auctionID}?user_id=...
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	state, err := h.bids.GetAuctionState(r.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "failed to load auction", http.StatusInternalServerError)
		return
	}
	if state.Status.Terminal() {
		h.log.Info("Rejected connection, auction finished", "auction_id", auctionID, "status", state.Status)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, auctionID)
	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	_ = wsConn.Send(map[string]interface{}{
		"type":  "auction_state",
		"state": dto.AuctionState(state),
	})

	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		_ = h.connManager.ReleaseConnection(conn)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Websocket read failed", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, msg)
		case "ping":
			_ = conn.Send(map[string]string{"type": "pong"})
		default:
			_ = conn.Send(map[string]string{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg clientMessage) {
	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		_ = conn.Send(map[string]string{"type": "error", "message": "invalid amount format"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	res, err := h.bids.PlaceBid(ctx, conn.AuctionID(), conn.UserID(), amount)
	if errors.Is(err, domain.ErrInvalidAmount) {
		_ = conn.Send(map[string]string{"type": "error", "message": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("Failed to place bid", "auction_id", conn.AuctionID(), "bidder_id", conn.UserID(), "error", err)
		_ = conn.Send(map[string]string{"type": "error", "message": "failed to place bid"})
		return
	}

	_ = conn.Send(map[string]interface{}{
		"type":   "bid_result",
		"result": dto.BidResult(res),
	})
}

// WebSocketConnection serializes writes; gorilla connections allow one
// concurrent writer.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}

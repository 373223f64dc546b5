package handlers

import (
	"bidding-engine/internal/api/dto"
	"bidding-engine/internal/domain"
	"bidding-engine/internal/infrastructure/websocket"
	"bidding-engine/pkg/logger"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// WebSocketHandlers is the bidding-service surface: the realtime socket plus
// a read-only state endpoint for clients that reconnect.
type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
	bids      websocket.BidPlacer
	log       logger.Logger
}

func NewWebSocketHandlers(bids websocket.BidPlacer, connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewWebSocketHandler(bids, connManager, log),
		bids:      bids,
		log:       log,
	}
}

func (h *WebSocketHandlers) Register(router *mux.Router) {
	router.HandleFunc("/ws/auction/{auctionID}", h.wsHandler.HandleConnection)
	router.HandleFunc("/api/v1/auctions/{auctionID}", h.GetAuctionState).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
}

func (h *WebSocketHandlers) GetAuctionState(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]
	state, err := h.bids.GetAuctionState(r.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		h.log.Error("Failed to load auction state", "auction_id", auctionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, dto.AuctionState(state))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package websocket

import (
	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

type stubBids struct {
	mu     sync.Mutex
	state  domain.AuctionState
	err    error
	placed []decimal.Decimal
}

func (s *stubBids) GetAuctionState(context.Context, string) (domain.AuctionState, error) {
	return s.state, s.err
}

func (s *stubBids) PlaceBid(_ context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.BidResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, amount)
	bid := domain.Bid{ID: "bid_1", AuctionID: auctionID, BidderID: bidderID, Amount: amount, Sequence: 1}
	return domain.Accepted(bid, 1), nil
}

func newSocketServer(t *testing.T, bids BidPlacer) (*httptest.Server, *ConnectionManager) {
	t.Helper()
	cm := NewConnectionManager(logger.NewNop())
	h := NewWebSocketHandler(bids, cm, logger.NewNop())
	r := mux.NewRouter()
	r.HandleFunc("/ws/auction/{auctionID}", h.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, cm
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHandleConnectionRejectsBeforeUpgrade(t *testing.T) {
	missing := &stubBids{err: domain.ErrAuctionNotFound}
	srv, _ := newSocketServer(t, missing)

	resp, err := http.Get(srv.URL + "/ws/auction/a1?user_id=u1")
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws/auction/a1")
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	done := &stubBids{state: domain.AuctionState{AuctionID: "a1", Status: domain.AuctionCompleted}}
	srv, _ = newSocketServer(t, done)
	resp, err = http.Get(srv.URL + "/ws/auction/a1?user_id=u1")
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleConnectionPlacesBids(t *testing.T) {
	bids := &stubBids{state: domain.AuctionState{
		AuctionID:    "a1",
		Status:       domain.AuctionActive,
		CurrentPrice: decimal.NewFromInt(100),
	}}
	srv, cm := newSocketServer(t, bids)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/auction/a1?user_id=u1"), nil)
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial map[string]interface{}
	assert.NoError(t, conn.ReadJSON(&initial))
	check.Equal(t, "auction_state", initial["type"].(string))
	check.Equal(t, 1, len(cm.GetConnectionsForAuction("a1")))

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]interface{}
	assert.NoError(t, conn.ReadJSON(&pong))
	check.Equal(t, "pong", pong["type"].(string))

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "not-a-number"}))
	var bad map[string]interface{}
	assert.NoError(t, conn.ReadJSON(&bad))
	check.Equal(t, "error", bad["type"].(string))

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "110.50"}))
	var reply struct {
		Type   string `json:"type"`
		Result struct {
			Accepted bool   `json:"accepted"`
			NewPrice string `json:"new_price"`
		} `json:"result"`
	}
	assert.NoError(t, conn.ReadJSON(&reply))
	check.Equal(t, "bid_result", reply.Type)
	check.True(t, reply.Result.Accepted)
	check.Equal(t, "110.5", reply.Result.NewPrice)

	bids.mu.Lock()
	check.Equal(t, 1, len(bids.placed))
	bids.mu.Unlock()
}

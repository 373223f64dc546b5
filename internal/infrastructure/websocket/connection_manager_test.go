package websocket

import (
	"bidding-engine/pkg/logger"
	"errors"
	"sync"
	"testing"

	"github.com/peterldowns/testy/check"
)

type fakeConn struct {
	mu        sync.Mutex
	userID    string
	auctionID string
	sent      []interface{}
	closed    bool
	sendErr   error
}

func (c *fakeConn) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) UserID() string    { return c.userID }
func (c *fakeConn) AuctionID() string { return c.auctionID }

func (c *fakeConn) messages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestRegisterReplacesSocketForSameBidder(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	first := &fakeConn{userID: "u1", auctionID: "a1"}
	second := &fakeConn{userID: "u1", auctionID: "a1"}

	check.NoError(t, cm.RegisterConnection("u1", "a1", first))
	check.NoError(t, cm.RegisterConnection("u1", "a1", second))

	check.True(t, first.closed)
	check.Equal(t, 1, len(cm.GetConnectionsForAuction("a1")))
	check.Equal(t, 1, len(cm.GetConnectionsForUser("u1")))

	// The replaced socket's reader exits later; it must not evict the new one.
	check.NoError(t, cm.ReleaseConnection(first))
	check.Equal(t, 1, len(cm.GetConnectionsForAuction("a1")))

	check.NoError(t, cm.ReleaseConnection(second))
	check.Equal(t, 0, len(cm.GetConnectionsForAuction("a1")))
	check.Equal(t, 0, len(cm.GetConnectionsForUser("u1")))
}

func TestBroadcastSkipsFailingSocket(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	bad := &fakeConn{userID: "u1", auctionID: "a1", sendErr: errors.New("broken pipe")}
	good := &fakeConn{userID: "u2", auctionID: "a1"}
	other := &fakeConn{userID: "u3", auctionID: "a2"}
	check.NoError(t, cm.RegisterConnection("u1", "a1", bad))
	check.NoError(t, cm.RegisterConnection("u2", "a1", good))
	check.NoError(t, cm.RegisterConnection("u3", "a2", other))

	check.NoError(t, cm.BroadcastToAuction("a1", map[string]string{"type": "bid_update"}))
	check.Equal(t, 1, good.messages())
	check.Equal(t, 0, other.messages())
}

func TestCloseAndUnregisterConnections(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	c1 := &fakeConn{userID: "u1", auctionID: "a1"}
	c2 := &fakeConn{userID: "u1", auctionID: "a2"}
	check.NoError(t, cm.RegisterConnection("u1", "a1", c1))
	check.NoError(t, cm.RegisterConnection("u1", "a2", c2))

	check.NoError(t, cm.CloseAndUnregisterConnections("a1"))
	check.True(t, c1.closed)
	check.False(t, c2.closed)
	check.Equal(t, 0, len(cm.GetConnectionsForAuction("a1")))

	user := cm.GetConnectionsForUser("u1")
	check.Equal(t, 1, len(user))
	check.Equal(t, "a2", user[0].AuctionID())

	check.NoError(t, cm.NotifyUser("u1", "hello"))
	check.Equal(t, 1, c2.messages())
}

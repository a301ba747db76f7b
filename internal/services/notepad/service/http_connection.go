package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// httpConnection implements mcp.Connection for HTTP-based communication. The
// SDK expects a bidirectional stream, so request delivery, per-request
// response routing, and notification fan-out map onto separate channels.
type httpConnection struct {
	sessionID  string
	reqChan    chan jsonrpc.Message
	notifyChan chan jsonrpc.Message // server-originated notifications, drained by SSE
	closed     chan struct{}
	ready      chan struct{} // signals the MCP runtime has started reading
	readyOnce  sync.Once

	mu         sync.Mutex
	closedFlag bool

	pendingMu   sync.Mutex
	pendingReqs map[jsonrpc.ID]chan jsonrpc.Message
}

// Read implements mcp.Connection.Read. The first read signals readiness so
// message handling knows the runtime is consuming this session.
func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	c.readyOnce.Do(func() {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	})

	select {
	case msg := <-c.reqChan:
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection.Write. Responses route to the pending
// request that matches their ID; everything else is a notification for the
// SSE stream. The split keeps a caller awaiting one response from receiving
// unrelated traffic.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}

	if resp, ok := msg.(*jsonrpc.Response); ok && resp.ID != (jsonrpc.ID{}) {
		c.pendingMu.Lock()
		respChan, exists := c.pendingReqs[resp.ID]
		c.pendingMu.Unlock()

		if exists {
			if c.isClosed() {
				return fmt.Errorf("connection closed")
			}
			select {
			case respChan <- msg:
				return nil
			case <-c.closed:
				return fmt.Errorf("connection closed")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.notifyChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements mcp.Connection.Close. Only the closed channel is closed;
// reqChan and notifyChan stay open because concurrent HTTP handlers may be
// mid-send on them. Every send and receive selects on closed, so all waiters
// drain without a send-on-closed-channel panic.
func (c *httpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closedFlag {
		return nil
	}
	c.closedFlag = true
	close(c.closed)
	return nil
}

// SessionID implements mcp.Connection.SessionID.
func (c *httpConnection) SessionID() string {
	return c.sessionID
}

func (c *httpConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedFlag
}

// Package client sends one request per connection to a correlatr server and
// reads back its single response.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/correlatr/internal/protocol"
	"github.com/danmuck/correlatr/internal/protocol/frame"
)

type Client struct {
	addr    string
	timeout time.Duration
	limits  frame.Limits
	dialer  net.Dialer
}

func New(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout, limits: frame.DefaultLimits()}
}

func (c *Client) Addr() string {
	return c.addr
}

// Do dials, writes req as one frame, reads one response frame and closes.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := frame.WriteFrame(conn, payload); err != nil {
		return nil, fmt.Errorf("client: write %s: %w", req.Kind(), err)
	}
	out, err := frame.ReadFrame(conn, c.limits)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	resp, err := protocol.DecodeResponse(out)
	if err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	return resp, nil
}

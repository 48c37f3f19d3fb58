package client

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/correlatr/internal/dispatch"
	"github.com/danmuck/correlatr/internal/protocol"
	"github.com/danmuck/correlatr/internal/render"
	"github.com/danmuck/correlatr/internal/server"
	"github.com/danmuck/correlatr/internal/store"
	"github.com/danmuck/correlatr/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCorrelatr(t *testing.T) *Client {
	t.Helper()
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "client.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := server.New(server.Config{Mode: server.ModeOneShot}, dispatch.New(s, render.DefaultScatter()))
	go func() { _ = srv.Serve(ctx, ln) }()
	return New(ln.Addr().String(), 5*time.Second)
}

func TestRoundTripOverTCP(t *testing.T) {
	c := startCorrelatr(t)
	ctx := context.Background()

	resp, err := c.Do(ctx, protocol.Ping{})
	require.NoError(t, err)
	assert.Equal(t, protocol.Status("Connected", false), resp)

	resp, err = c.Do(ctx, protocol.ChangeColumn{NewColumnName: "weight"})
	require.NoError(t, err)
	assert.Equal(t, protocol.Status("weight has been added", false), resp)

	resp, err = c.Do(ctx, protocol.UpdateData{DateMillis: 86_400_000 * 10, NewData: []protocol.DataPoint{
		{ColumnName: "weight", Value: 71.2},
	}})
	require.NoError(t, err)
	assert.Equal(t, protocol.Status("Success", false), resp)

	resp, err = c.Do(ctx, protocol.DataRequest{DateMillis: 86_400_000*10 + 1})
	require.NoError(t, err)
	assert.Equal(t, protocol.DataPoints{Points: []protocol.DataPoint{{ColumnName: "weight", Value: 71.2}}}, resp)

	resp, err = c.Do(ctx, protocol.ColumnsRequest{})
	require.NoError(t, err)
	assert.Equal(t, protocol.ColumnNames{Names: []string{"weight"}}, resp)
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New(addr, time.Second).Do(context.Background(), protocol.Ping{})
	assert.Error(t, err)
}

func TestTimeoutWhenServerIsSilent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(time.Second)
	}()

	start := time.Now()
	_, err = New(ln.Addr().String(), 100*time.Millisecond).Do(context.Background(), protocol.Ping{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

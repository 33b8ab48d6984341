package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/misperer/configs"
	"github.com/i2y/misperer/internal/adapter/inbound/mcphttp"
)

func TestServeSSE_ExitStatus(t *testing.T) {
	// Holds a port so the admin server cannot bind it.
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	tests := []struct {
		name      string
		adminAddr string
		cancel    bool
		wantErr   string
	}{
		{name: "Admin address in use", adminAddr: busy.Addr().String(), wantErr: "admin server"},
		{name: "Interrupted", adminAddr: "127.0.0.1:0", cancel: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			cfg := &configs.Config{
				ListenAddr:      "127.0.0.1:0",
				AdminAddr:       tt.adminAddr,
				ShutdownTimeout: 2 * time.Second,
			}
			ctx, stop := context.WithCancel(context.Background())
			defer stop()
			if tt.cancel {
				stop()
			}

			done := make(chan error, 1)
			go func() {
				done <- serveSSE(ctx, stop, cfg, mcpGoServer.NewMCPServer("test", "0"),
					mcphttp.NewHandlers(nil, nil, nil, logger), logger)
			}()

			select {
			case err := <-done:
				if tt.wantErr == "" {
					assert.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			case <-time.After(10 * time.Second):
				t.Fatal("serveSSE did not return")
			}
		})
	}
}

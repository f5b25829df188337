//go:build integration

package testutil

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/api"
	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/eventbus"
	"github.com/wardenhq/warden/internal/supervisor"
)

// IntegrationServer is a real control-surface Server wired to a real
// Supervisor, listening on a loopback port, for integration testing.
type IntegrationServer struct {
	Server     *api.Server
	Supervisor *supervisor.Supervisor
	Bus        *eventbus.Bus
	Addr       string
	cancel     context.CancelFunc
}

// StartIntegrationServer builds a Supervisor from cfg with spawner as the
// process spawner, starts a real api.Server around it on a loopback port,
// and registers cleanup to shut both down.
func StartIntegrationServer(t *testing.T, cfg *config.Config, spawner child.Spawner) *IntegrationServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	bus := eventbus.New(logger)
	sup := supervisor.New(cfg, bus, spawner, nil, logger)

	srv := api.NewServer(api.Config{}, sup, bus, nil, logger)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("cannot start integration server: %v", err)
	}
	go srv.Serve()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Stop(shutdownCtx)
	})

	addr := srv.Addr()
	WaitFor(t, func() bool {
		resp, err := http.Get("http://" + addr + "/state")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 5*time.Second)

	_ = ctx
	return &IntegrationServer{
		Server:     srv,
		Supervisor: sup,
		Bus:        bus,
		Addr:       addr,
		cancel:     cancel,
	}
}

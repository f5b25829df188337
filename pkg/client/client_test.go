package client

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/api"
	wchild "github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/eventbus"
	"github.com/wardenhq/warden/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDaemon(t *testing.T) *Client {
	t.Helper()
	bus := eventbus.New(testLogger())
	cfg := &config.Config{
		Main: config.MainConfig{Name: "clienttest"},
		Programs: map[string]config.ProgramConfig{
			"sleeper": {Command: []string{"/bin/sleep"}, Exitcodes: []int{0}},
		},
	}
	spawner := &wchild.MockSpawner{SpawnFn: func(sc wchild.SpawnConfig) (wchild.SpawnedProcess, error) {
		mp := wchild.NewMockProcess(99)
		mp.WithWait(func() (*os.ProcessState, error) { select {}; return nil, nil })
		return mp, nil
	}}
	sup := supervisor.New(cfg, bus, spawner, nil, testLogger())
	srv := api.NewServer(api.Config{}, sup, bus, nil, testLogger())

	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	return New(srv.Addr(), "", "")
}

func TestClientStateRoundTrip(t *testing.T) {
	c := newTestDaemon(t)

	state, err := c.State(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state != "Stopped" {
		t.Fatalf("expected Stopped, got %s", state)
	}
}

func TestClientProcessInfoUnknownNameReturnsResponseError(t *testing.T) {
	c := newTestDaemon(t)

	_, err := c.ProcessInfo(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for unknown process")
	}
	re, ok := err.(*ResponseError)
	if !ok {
		t.Fatalf("expected *ResponseError, got %T", err)
	}
	if re.Status != 404 {
		t.Fatalf("expected 404, got %d", re.Status)
	}
}

func TestClientStartAndInfoRoundTrip(t *testing.T) {
	c := newTestDaemon(t)
	ctx := context.Background()

	if err := c.StartProcess(ctx, "sleeper"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	var info ProcessInfo
	for time.Now().Before(deadline) {
		var err error
		info, err = c.ProcessInfo(ctx, "sleeper")
		if err != nil {
			t.Fatal(err)
		}
		if info.State == "RUNNING" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if info.State != "RUNNING" {
		t.Fatalf("expected RUNNING, got %s", info.State)
	}
	if info.Pid != 99 {
		t.Fatalf("expected pid 99, got %d", info.Pid)
	}
}

func TestClientStartThenDoubleStartReturnsResponseError(t *testing.T) {
	c := newTestDaemon(t)
	ctx := context.Background()

	if err := c.StartProcess(ctx, "sleeper"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		info, err := c.ProcessInfo(ctx, "sleeper")
		if err != nil {
			t.Fatal(err)
		}
		if info.State == "RUNNING" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	err := c.StartProcess(ctx, "sleeper")
	if err == nil {
		t.Fatal("expected an error starting an already-running process")
	}
	re, ok := err.(*ResponseError)
	if !ok {
		t.Fatalf("expected *ResponseError, got %T", err)
	}
	if re.Status != 400 {
		t.Fatalf("expected 400, got %d", re.Status)
	}
}

func TestClientProcessesListsConfiguredChild(t *testing.T) {
	c := newTestDaemon(t)

	procs, err := c.Processes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := procs["sleeper"]; !ok {
		t.Fatalf("expected sleeper in process list, got %v", procs)
	}
}

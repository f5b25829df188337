package supervisor

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cfgWithPrograms(programs map[string]config.ProgramConfig) *config.Config {
	return &config.Config{
		Main:     config.MainConfig{Name: "testsup"},
		Programs: programs,
	}
}

func sleeperProgram(autostart bool) config.ProgramConfig {
	return config.ProgramConfig{
		Command:      []string{"/bin/sleep"},
		Startsecs:    0,
		Startretries: 0,
		Stopwaitsecs: 1,
		Autostart:    &autostart,
		Exitcodes:    []int{0},
	}
}

func TestStartIssuesAutostartChildrenOnly(t *testing.T) {
	bus := eventbus.New(testLogger())
	cfg := cfgWithPrograms(map[string]config.ProgramConfig{
		"auto":    sleeperProgram(true),
		"manual":  sleeperProgram(false),
	})

	started := make(map[string]bool)
	spawner := &child.MockSpawner{SpawnFn: func(sc child.SpawnConfig) (child.SpawnedProcess, error) {
		mp := child.NewMockProcess(1)
		mp.WithWait(func() (*os.ProcessState, error) { select {}; return nil, nil })
		return mp, nil
	}}

	sup := New(cfg, bus, spawner, nil, testLogger())
	bus.Subscribe(eventbus.TopicProcessState, func(e eventbus.Event) {
		if e.NewState == "STARTING" {
			started[e.Sender] = true
		}
	})

	sup.Start()

	if !started["auto"] {
		t.Fatal("expected autostart child to be started")
	}
	if started["manual"] {
		t.Fatal("expected non-autostart child to remain stopped")
	}
	if sup.State() != Running {
		t.Fatalf("expected supervisor Running, got %s", sup.State())
	}
}

func TestStopJoinsAllChildren(t *testing.T) {
	bus := eventbus.New(testLogger())
	cfg := cfgWithPrograms(map[string]config.ProgramConfig{
		"a": sleeperProgram(true),
		"b": sleeperProgram(true),
	})

	spawner := &child.MockSpawner{SpawnFn: func(sc child.SpawnConfig) (child.SpawnedProcess, error) {
		waitCh := make(chan struct{})
		mp := child.NewMockProcess(1)
		mp.WithWait(func() (*os.ProcessState, error) { <-waitCh; return nil, nil })
		mp.WithSignal(func(os.Signal) error { close(waitCh); return nil })
		return mp, nil
	}}

	sup := New(cfg, bus, spawner, nil, testLogger())
	sup.Start()

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}

	if sup.State() != Stopped {
		t.Fatalf("expected supervisor Stopped, got %s", sup.State())
	}
	for name, c := range sup.Children() {
		if c.State() != child.Stopped {
			t.Fatalf("expected child %s stopped, got %s", name, c.State())
		}
	}
}

func TestProcessReturnsNotFoundForUnknownName(t *testing.T) {
	bus := eventbus.New(testLogger())
	cfg := cfgWithPrograms(map[string]config.ProgramConfig{})
	sup := New(cfg, bus, &child.MockSpawner{}, nil, testLogger())

	_, err := sup.Process("missing")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestInfoReflectsConfiguredName(t *testing.T) {
	bus := eventbus.New(testLogger())
	cfg := cfgWithPrograms(map[string]config.ProgramConfig{})
	sup := New(cfg, bus, &child.MockSpawner{}, nil, testLogger())

	info := sup.Info()
	if info.Name != "testsup" {
		t.Fatalf("expected name testsup, got %s", info.Name)
	}
	if info.State != Stopped {
		t.Fatalf("expected initial state Stopped, got %s", info.State)
	}
}

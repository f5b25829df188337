package metrics

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wardenhq/warden/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)
	return rr.Body.String()
}

func TestSubscribeUpdatesStateGaugeOnTransition(t *testing.T) {
	bus := eventbus.New(testLogger())
	c := New()
	unsub := Subscribe(bus, c)
	defer unsub()

	bus.Publish(eventbus.Event{Topic: eventbus.TopicProcessState, Sender: "sleeper", OldState: "STOPPED", NewState: "STARTING"})

	body := scrape(t, c)
	if !strings.Contains(body, `warden_process_state{name="sleeper"} 1`) {
		t.Fatalf("expected sleeper state gauge at 1 (Starting), got:\n%s", body)
	}
	if !strings.Contains(body, `warden_process_start_total{name="sleeper"} 1`) {
		t.Fatalf("expected start counter incremented, got:\n%s", body)
	}
}

func TestSubscribeIncrementsExitCounterOnFatal(t *testing.T) {
	bus := eventbus.New(testLogger())
	c := New()
	unsub := Subscribe(bus, c)
	defer unsub()

	bus.Publish(eventbus.Event{Topic: eventbus.TopicProcessState, Sender: "flaky", OldState: "STARTING", NewState: "FATAL"})

	body := scrape(t, c)
	if !strings.Contains(body, `warden_process_exit_total{expected="false",name="flaky"} 1`) {
		t.Fatalf("expected unexpected-exit counter incremented, got:\n%s", body)
	}
}

func TestUnsubscribeStopsFurtherUpdates(t *testing.T) {
	bus := eventbus.New(testLogger())
	c := New()
	unsub := Subscribe(bus, c)
	unsub()

	bus.Publish(eventbus.Event{Topic: eventbus.TopicProcessState, Sender: "ghost", NewState: "RUNNING"})

	body := scrape(t, c)
	if strings.Contains(body, `name="ghost"`) {
		t.Fatalf("expected no metric for ghost after unsubscribe, got:\n%s", body)
	}
}

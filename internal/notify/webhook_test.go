package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookDeliversOnSubscribedTopic(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(testLogger())
	wm := NewWebhookManager(bus, []WebhookConfig{
		{Name: "test", URL: srv.URL, Topics: []eventbus.Topic{eventbus.TopicProcessState}, MaxRetries: 1, Timeout: time.Second},
	}, testLogger())
	defer wm.Stop()

	bus.Publish(eventbus.Event{Topic: eventbus.TopicProcessState, Sender: "child1", OldState: "STOPPED", NewState: "STARTING"})

	select {
	case body := <-received:
		if body["new_state"] != "STARTING" {
			t.Fatalf("expected new_state STARTING, got %v", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered in time")
	}
}

func TestWebhookSkipsUnsubscribedTopic(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(testLogger())
	wm := NewWebhookManager(bus, []WebhookConfig{
		{Name: "test", URL: srv.URL, Topics: []eventbus.Topic{eventbus.TopicServerState}, MaxRetries: 1, Timeout: time.Second},
	}, testLogger())
	defer wm.Stop()

	bus.Publish(eventbus.Event{Topic: eventbus.TopicProcessState, Sender: "child1", NewState: "RUNNING"})
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("expected no delivery for an unsubscribed topic")
	}
}

func TestWebhookCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bus := eventbus.New(testLogger())
	wm := NewWebhookManager(bus, []WebhookConfig{
		{Name: "flaky", URL: srv.URL, Topics: []eventbus.Topic{eventbus.TopicProcessState}, MaxRetries: 1, Timeout: time.Second},
	}, testLogger())
	defer wm.Stop()

	for i := 0; i < 5; i++ {
		bus.Publish(eventbus.Event{Topic: eventbus.TopicProcessState, Sender: "child1", NewState: "FATAL"})
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	wm.hooks[0].mu.Lock()
	tripped := wm.hooks[0].tripped
	wm.hooks[0].mu.Unlock()
	if !tripped {
		t.Fatal("expected circuit breaker to trip after 5 consecutive failures")
	}
}

func TestExpandEnvResolvesVariables(t *testing.T) {
	os.Setenv("WARDEN_TEST_TOKEN", "abc123")
	defer os.Unsetenv("WARDEN_TEST_TOKEN")

	got, err := ExpandEnv("https://hooks.example.com/${WARDEN_TEST_TOKEN}")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://hooks.example.com/abc123" {
		t.Fatalf("unexpected expansion: %s", got)
	}
}

func TestExpandEnvFailsOnUndefinedVariable(t *testing.T) {
	_, err := ExpandEnv("${WARDEN_DOES_NOT_EXIST}")
	if err == nil {
		t.Fatal("expected an error for an undefined variable")
	}
}

func TestValidateWebhookURLRejectsPlainHTTPByDefault(t *testing.T) {
	if err := ValidateWebhookURL("http://example.com/hook", false); err == nil {
		t.Fatal("expected rejection of non-loopback plain HTTP")
	}
	if err := ValidateWebhookURL("http://127.0.0.1:8080/hook", false); err != nil {
		t.Fatalf("expected loopback HTTP to be allowed, got %v", err)
	}
	if err := ValidateWebhookURL("https://example.com/hook", false); err != nil {
		t.Fatalf("expected HTTPS to be allowed, got %v", err)
	}
}

package api

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/eventbus"
	"github.com/wardenhq/warden/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	bus := eventbus.New(testLogger())
	progCfg := &config.Config{
		Main: config.MainConfig{Name: "apitest"},
		Programs: map[string]config.ProgramConfig{
			"sleeper": {
				Command:   []string{"/bin/sleep"},
				Exitcodes: []int{0},
			},
		},
	}
	spawner := &child.MockSpawner{SpawnFn: func(sc child.SpawnConfig) (child.SpawnedProcess, error) {
		mp := child.NewMockProcess(42)
		mp.WithWait(func() (*os.ProcessState, error) { select {}; return nil, nil })
		return mp, nil
	}}
	sup := supervisor.New(progCfg, bus, spawner, nil, testLogger())

	s := NewServer(cfg, sup, bus, nil, testLogger())
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHandleStateReturnsCurrentState(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["state"] != "Stopped" {
		t.Fatalf("expected Stopped, got %v", body)
	}
}

func TestHandleProcessInfoUnknownNameIs404(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/process/info/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["detail"] == "" {
		t.Fatal("expected a detail message")
	}
}

func TestHandleProcessStartThenDoubleStartIs400(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Post(ts.URL+"/process/start/sleeper", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Wait for the driver to reach Running (startSecs defaults to 0).
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r, _ := http.Get(ts.URL + "/process/info/sleeper")
		var info child.Info
		json.NewDecoder(r.Body).Decode(&info)
		r.Body.Close()
		if info.State == child.Running.String() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp2, err := http.Post(ts.URL+"/process/start/sleeper", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on double start, got %d", resp2.StatusCode)
	}
}

func TestRequireAuthRejectsMissingCredentials(t *testing.T) {
	_, ts := newTestServer(t, Config{Username: "admin", Password: "secret"})

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthAcceptsValidCredentials(t *testing.T) {
	_, ts := newTestServer(t, Config{Username: "admin", Password: "secret"})

	req, _ := http.NewRequest("GET", ts.URL+"/state", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsRouteAbsentWithoutCollector(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered /metrics, got %d", resp.StatusCode)
	}
}

func TestStreamDeliversProcessStateEvent(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(ts.URL + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	go http.Post(ts.URL+"/process/start/sleeper", "application/json", nil)

	reader := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(line, "data: ") {
			var payload streamPayload
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err == nil {
				if payload.NewState == child.Starting.String() {
					return
				}
			}
		}
	}
	t.Fatal("did not observe a Starting event on the stream within the deadline")
}

// Package client is a thin remote client for a wardend control surface. It
// speaks the REST + Server-Sent Events protocol exposed by internal/api and
// performs no supervision logic of its own.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a single wardend daemon over TCP, optionally
// authenticating with HTTP Basic Auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
}

// New builds a client for the daemon listening at addr (host:port).
func New(addr, username, password string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "http://" + addr,
		username:   username,
		password:   password,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

// ResponseError is returned for any non-2xx response; Status carries the
// HTTP status code so callers can distinguish NotFound (404) from
// IllegalState/AlreadyRunning/AlreadyStopped (400) without string matching.
type ResponseError struct {
	Status int
	Detail string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Detail == "" {
		return &ResponseError{Status: resp.StatusCode, Detail: resp.Status}
	}
	return &ResponseError{Status: resp.StatusCode, Detail: body.Detail}
}

// ProcessInfo mirrors the JSON shape of child.Info.
type ProcessInfo struct {
	Name           string          `json:"Name"`
	State          string          `json:"State"`
	StartTime      *time.Time      `json:"StartTime"`
	StopTime       *time.Time      `json:"StopTime"`
	Pid            int             `json:"Pid"`
	LastReturnCode *int            `json:"LastReturnCode"`
	LastError      string          `json:"LastError"`
	Metrics        *ProcessMetrics `json:"Metrics"`
}

// ProcessMetrics mirrors child.Metrics.
type ProcessMetrics struct {
	Cmdline    string  `json:"Cmdline"`
	CPUPercent float64 `json:"CPUPercent"`
	MemoryRSS  uint64  `json:"MemoryRSS"`
	NumThreads int32   `json:"NumThreads"`
}

// State returns the supervisor's own coarse state.
func (c *Client) State(ctx context.Context) (string, error) {
	var body struct {
		State string `json:"state"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/state", &body); err != nil {
		return "", err
	}
	return body.State, nil
}

// Processes lists every supervised child by name.
func (c *Client) Processes(ctx context.Context) (map[string]ProcessInfo, error) {
	var out map[string]ProcessInfo
	if err := c.doJSON(ctx, http.MethodGet, "/processes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessInfo fetches the state of a single named child.
func (c *Client) ProcessInfo(ctx context.Context, name string) (ProcessInfo, error) {
	var out ProcessInfo
	if err := c.doJSON(ctx, http.MethodGet, "/process/info/"+name, &out); err != nil {
		return ProcessInfo{}, err
	}
	return out, nil
}

// StartProcess requests that the named child be started.
func (c *Client) StartProcess(ctx context.Context, name string) error {
	return c.post(ctx, "/process/start/"+name)
}

// StopProcess requests a graceful stop of the named child.
func (c *Client) StopProcess(ctx context.Context, name string) error {
	return c.post(ctx, "/process/stop/"+name)
}

// KillProcess requests an immediate, forceful stop of the named child.
func (c *Client) KillProcess(ctx context.Context, name string) error {
	return c.post(ctx, "/process/kill/"+name)
}

func (c *Client) post(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

// StreamEvent is one decoded Server-Sent Event frame from /stream.
type StreamEvent struct {
	Topic     string
	EventType string `json:"event_type"`
	OldState  string `json:"old_state"`
	NewState  string `json:"new_state"`
	Server    any    `json:"server,omitempty"`
	Process   any    `json:"process,omitempty"`
}

// Stream subscribes to the daemon's event feed and invokes fn for every
// event until ctx is cancelled or the connection drops.
func (c *Client) Stream(ctx context.Context, fn func(StreamEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev StreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			ev.Topic = eventName
			fn(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

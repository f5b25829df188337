// Package notify is a boundary adapter: it subscribes to the event bus's
// two core topics and forwards transitions to external HTTP endpoints. It
// contributes no supervisory logic, matching the "contract only" nature
// of adapters described in the design.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/eventbus"
)

// WebhookConfig describes one delivery destination.
type WebhookConfig struct {
	Name          string
	URL           string
	Topics        []eventbus.Topic
	Headers       map[string]string
	Timeout       time.Duration
	MaxRetries    int
	AllowInsecure bool
}

// WebhookManager subscribes to the bus and delivers HTTP POST
// notifications, asynchronously and off the publisher's goroutine.
type WebhookManager struct {
	bus    *eventbus.Bus
	logger *slog.Logger
	hooks  []*webhookEntry
	subIDs []uint64
}

type webhookEntry struct {
	cfg       WebhookConfig
	mu        sync.Mutex
	failures  int
	tripped   bool
	trippedAt time.Time
}

// circuitCooldown is how long a tripped webhook is skipped before
// deliveries are allowed through again to test recovery (half-open).
const circuitCooldown = 30 * time.Second

// NewWebhookManager builds a manager for configs and subscribes each
// hook to its requested topics immediately.
func NewWebhookManager(bus *eventbus.Bus, configs []WebhookConfig, logger *slog.Logger) *WebhookManager {
	wm := &WebhookManager{bus: bus, logger: logger}
	for _, cfg := range configs {
		if cfg.Timeout == 0 {
			cfg.Timeout = 5 * time.Second
		}
		if cfg.MaxRetries == 0 {
			cfg.MaxRetries = 3
		}
		entry := &webhookEntry{cfg: cfg}
		wm.hooks = append(wm.hooks, entry)
		for _, topic := range cfg.Topics {
			id := wm.bus.Subscribe(topic, func(e eventbus.Event) { go wm.deliver(entry, e) })
			wm.subIDs = append(wm.subIDs, id)
		}
	}
	return wm
}

// Stop unsubscribes every hook from the bus.
func (wm *WebhookManager) Stop() {
	for _, id := range wm.subIDs {
		wm.bus.Unsubscribe(id)
	}
}

func (wm *WebhookManager) deliver(h *webhookEntry, e eventbus.Event) {
	h.mu.Lock()
	if h.tripped {
		if time.Since(h.trippedAt) < circuitCooldown {
			h.mu.Unlock()
			return
		}
		// Cooldown elapsed: let this one delivery through as a half-open probe.
	}
	h.mu.Unlock()

	payload := buildPayload(e)

	var lastErr error
	for attempt := 0; attempt < h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}
		if err := wm.sendHTTP(h, payload); err != nil {
			lastErr = err
			continue
		}
		h.mu.Lock()
		h.failures = 0
		h.tripped = false
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	h.failures++
	tripped := h.failures >= 5
	if tripped {
		h.trippedAt = time.Now()
	}
	h.tripped = h.tripped || tripped
	h.mu.Unlock()

	if wm.logger != nil {
		wm.logger.Error("webhook delivery failed", "name", h.cfg.Name, "url", h.cfg.URL, "error", lastErr)
		if tripped {
			wm.logger.Warn("webhook circuit breaker tripped", "name", h.cfg.Name)
		}
	}
}

func (wm *WebhookManager) sendHTTP(h *webhookEntry, payload []byte) error {
	client := &http.Client{Timeout: h.cfg.Timeout}
	req, err := http.NewRequest(http.MethodPost, h.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "warden-webhook/1.0")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func buildPayload(e eventbus.Event) []byte {
	payload := map[string]any{
		"event_type": string(e.Topic),
		"old_state":  e.OldState,
		"new_state":  e.NewState,
		"sender":     e.Sender,
		"timestamp":  e.Timestamp.Format(time.RFC3339),
		"info":       e.Info,
	}
	data, _ := json.Marshal(payload)
	return data
}

// ValidateWebhookURL rejects plain HTTP targets unless they're loopback
// or the caller explicitly opted into insecure delivery.
func ValidateWebhookURL(rawURL string, allowInsecure bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid webhook URL format: %s", rawURL)
	}
	if u.Scheme == "http" {
		host := u.Hostname()
		isLocal := host == "localhost" || host == "127.0.0.1" || host == "::1"
		if !isLocal && !allowInsecure {
			return fmt.Errorf("webhook URL must use HTTPS: %s (set allow_insecure=true to override)", rawURL)
		}
	}
	return nil
}

// ExpandEnv resolves ${VAR} references in a webhook URL/header value.
func ExpandEnv(s string) (string, error) {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if i+1 < len(s) && s[i] == '$' && s[i+1] == '{' {
			end := strings.Index(s[i:], "}")
			if end == -1 {
				return "", fmt.Errorf("unclosed ${} in %q", s)
			}
			name := s[i+2 : i+end]
			val, ok := os.LookupEnv(name)
			if !ok {
				return "", fmt.Errorf("undefined environment variable: %s", name)
			}
			result.WriteString(val)
			i += end + 1
		} else {
			result.WriteByte(s[i])
			i++
		}
	}
	return result.String(), nil
}

// Package api is the boundary adapter (§4.4) that exposes the supervision
// core over the REST + Server-Sent Events control surface described in §6.
// It translates domain errors to wire representations and subscribes to
// the event bus for the life of each stream connection; it contributes no
// supervisory logic of its own.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal/child"
	"github.com/wardenhq/warden/internal/eventbus"
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/supervisor"
)

// Server is the HTTP control surface for a Supervisor.
type Server struct {
	sup       *supervisor.Supervisor
	bus       *eventbus.Bus
	collector *metrics.Collector
	logger    *slog.Logger
	mux       *http.ServeMux
	ln        net.Listener
	srv       *http.Server

	authUser string
	authPass string // bcrypt hash, or plain text for local testing
}

// Config holds API server configuration (the opaque "web" block of §6).
type Config struct {
	Listen   string
	Username string
	Password string
}

// NewServer builds the control surface around an already-constructed
// Supervisor. collector may be nil, in which case /metrics is not served.
func NewServer(cfg Config, sup *supervisor.Supervisor, bus *eventbus.Bus, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		sup:       sup,
		bus:       bus,
		collector: collector,
		logger:    logger,
		authUser:  cfg.Username,
		authPass:  cfg.Password,
	}
	s.mux = s.buildMux()
	return s
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.requireAuth(s.handleState))
	mux.HandleFunc("GET /processes", s.requireAuth(s.handleProcesses))
	mux.HandleFunc("GET /process/info/{name}", s.requireAuth(s.handleProcessInfo))
	mux.HandleFunc("POST /process/start/{name}", s.requireAuth(s.handleProcessStart))
	mux.HandleFunc("POST /process/stop/{name}", s.requireAuth(s.handleProcessStop))
	mux.HandleFunc("POST /process/kill/{name}", s.requireAuth(s.handleProcessKill))
	mux.HandleFunc("GET /stream", s.requireAuth(s.handleStream))
	if s.collector != nil {
		mux.Handle("GET /metrics", s.requireAuth(s.collector.Handler().ServeHTTP))
	}
	return mux
}

// Listen binds the configured address; call Serve to start accepting.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot bind %s: %w", addr, err)
	}
	s.ln = ln

	host, _, _ := net.SplitHostPort(addr)
	if host == "0.0.0.0" || host == "" || host == "::" {
		s.logger.Warn("control surface bound to all interfaces", "addr", addr)
	}
	return nil
}

// Serve accepts connections on the listener created by Listen. Blocks
// until Stop is called.
func (s *Server) Serve() error {
	s.srv = &http.Server{Handler: s.mux}
	s.logger.Info("control surface listening", "addr", s.ln.Addr().String())
	if err := s.srv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound address, or empty if Listen hasn't run.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": s.sup.State().String()})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]child.Info)
	for name, c := range s.sup.Children() {
		out[name] = c.Info()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProcessInfo(w http.ResponseWriter, r *http.Request) {
	c, err := s.sup.Process(r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Info())
}

func (s *Server) handleProcessStart(w http.ResponseWriter, r *http.Request) {
	c, err := s.sup.Process(r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := c.Start(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ACK"})
}

func (s *Server) handleProcessStop(w http.ResponseWriter, r *http.Request) {
	c, err := s.sup.Process(r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := c.Stop(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ACK"})
}

func (s *Server) handleProcessKill(w http.ResponseWriter, r *http.Request) {
	c, err := s.sup.Process(r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := c.Kill(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ACK"})
}

// streamPayload is the wire shape of one /stream event, per §6: event_type,
// old_state, new_state, and a server or process info snapshot depending on
// which topic fired.
type streamPayload struct {
	EventType string `json:"event_type"`
	OldState  string `json:"old_state"`
	NewState  string `json:"new_state"`
	Server    any    `json:"server,omitempty"`
	Process   any    `json:"process,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Each connection gets its own drop-oldest queue (§9 "backpressure on
	// event subscribers"): a slow client cannot make the publisher block.
	queue := eventbus.NewQueue(256)
	defer queue.Close()

	serverID := s.bus.Subscribe(eventbus.TopicServerState, func(e eventbus.Event) { queue.Push(e) })
	processID := s.bus.Subscribe(eventbus.TopicProcessState, func(e eventbus.Event) { queue.Push(e) })
	defer s.bus.Unsubscribe(serverID)
	defer s.bus.Unsubscribe(processID)

	done := r.Context().Done()
	events := make(chan eventbus.Event)
	go func() {
		for {
			e, ok := queue.Pop()
			if !ok {
				close(events)
				return
			}
			select {
			case events <- e:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			payload := streamPayload{
				EventType: string(e.Topic),
				OldState:  e.OldState,
				NewState:  e.NewState,
			}
			switch e.Topic {
			case eventbus.TopicServerState:
				payload.Server = e.Info
			case eventbus.TopicProcessState:
				payload.Process = e.Info
			}
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Topic, data)
			flusher.Flush()
		}
	}
}

// --- Auth middleware ---

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authUser == "" {
			next(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != s.authUser || !checkPassword(pass, s.authPass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="warden"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func checkPassword(plain, hash string) bool {
	if hash == "" {
		return plain == ""
	}
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
	}
	return plain == hash
}

// --- Error mapping (§6) ---

func writeDomainError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *supervisor.NotFoundError:
		writeError(w, http.StatusNotFound, err.Error())
	case *child.ErrAlreadyRunning, *child.ErrAlreadyStopped, *child.ErrIllegalState:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

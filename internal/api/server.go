// Package api is the main-thread adapter (spec §4.11): the single façade
// a client talks to. It owns the reactive session fields the spec names
// (isReady, isLoading, progress, progressMessage, currentAttempt,
// maxAttempts, error) and exposes generateSchema/cancelGeneration/
// checkMemory/terminate over a websocket session, the way a browser
// main thread exposes those calls to its UI. Built on Gin +
// gorilla/websocket the way the teacher's HandleChatWebSocket does.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/schemaforge/schemaforge/internal/engine"
	"github.com/schemaforge/schemaforge/internal/logging"
	"github.com/schemaforge/schemaforge/internal/ratelimit"
	"github.com/schemaforge/schemaforge/internal/worker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 1 << 20,
}

// ClientRequest is the single inbound message shape over the websocket,
// mirroring the teacher's WSRequest action-routing pattern.
type ClientRequest struct {
	Type  string `json:"type"`
	Input string `json:"input,omitempty"`
}

// ClientEvent is the single outbound message shape, mirroring a
// worker.Event but JSON-tagged for the wire.
type ClientEvent struct {
	Type        worker.EventType `json:"type"`
	Percent     int              `json:"percent,omitempty"`
	Message     string           `json:"message,omitempty"`
	Attempt     int              `json:"attempt,omitempty"`
	MaxAttempts int              `json:"maxAttempts,omitempty"`
	Schema      string           `json:"schema,omitempty"`
	MemoryOK    bool             `json:"memoryOk,omitempty"`
	FreeMB      int64            `json:"freeMb,omitempty"`
	ErrKind     string           `json:"errKind,omitempty"`
	Err         string           `json:"err,omitempty"`
}

func toClientEvent(e worker.Event) ClientEvent {
	return ClientEvent{
		Type:        e.Type,
		Percent:     e.Percent,
		Message:     e.Message,
		Attempt:     e.Attempt,
		MaxAttempts: e.MaxAttempts,
		Schema:      e.Schema,
		MemoryOK:    e.MemoryOK,
		FreeMB:      e.FreeMB,
		ErrKind:     e.ErrKind,
		Err:         e.Err,
	}
}

// SessionState is the reactive surface the spec names for the adapter.
// Fields are updated as worker.Events arrive and are safe to read
// concurrently via Snapshot.
type SessionState struct {
	mu              sync.RWMutex
	IsReady         bool
	IsLoading       bool
	Progress        int
	ProgressMessage string
	CurrentAttempt  int
	MaxAttempts     int
	Error           string
}

func (s *SessionState) apply(e worker.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case worker.EventProgress:
		s.IsLoading = e.Percent < 100
		s.Progress = e.Percent
		s.ProgressMessage = e.Message
		s.Error = ""
	case worker.EventAttempt:
		s.CurrentAttempt = e.Attempt
		s.MaxAttempts = e.MaxAttempts
	case worker.EventResult:
		s.IsReady = true
		s.IsLoading = false
		s.Progress = 100
		s.Error = ""
	case worker.EventError:
		s.IsLoading = false
		s.Error = e.Err
	}
}

// Snapshot returns a copy of the current state, safe to serialize.
func (s *SessionState) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionState{
		IsReady:         s.IsReady,
		IsLoading:       s.IsLoading,
		Progress:        s.Progress,
		ProgressMessage: s.ProgressMessage,
		CurrentAttempt:  s.CurrentAttempt,
		MaxAttempts:     s.MaxAttempts,
		Error:           s.Error,
	}
}

// Server is the HTTP/websocket front door over one Orchestrator.
type Server struct {
	orchestrator *worker.Orchestrator
	limiter      *ratelimit.Limiter
	log          *logging.Logger
}

// NewServer builds a Server bound to orchestrator, gated by limiter.
func NewServer(orchestrator *worker.Orchestrator, limiter *ratelimit.Limiter, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{orchestrator: orchestrator, limiter: limiter, log: log}
}

// Router builds the Gin engine: a health check and the websocket session
// endpoint.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", s.handleSession)
	return r
}

// handleSession upgrades the connection and runs the single
// request-dispatch loop: one goroutine, one connection, one
// Orchestrator session at a time (spec §4.9's reentrancy rule, enforced
// by the Orchestrator itself).
func (s *Server) handleSession(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	state := &SessionState{}
	var writeMu sync.Mutex
	send := func(e worker.Event) {
		state.apply(e)
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := ws.WriteJSON(toClientEvent(e)); err != nil {
			s.log.Warn("failed to write websocket event", "error", err)
		}
	}

	for {
		var req ClientRequest
		if err := ws.ReadJSON(&req); err != nil {
			s.log.Info("websocket session ended", "error", err)
			return
		}

		switch req.Type {
		case "generate":
			if s.limiter != nil && s.limiter.IsLimited() {
				send(worker.Event{
					Type:    worker.EventError,
					ErrKind: worker.ErrKindRateLimited,
					Err:     "cooldown active, try again shortly",
				})
				continue
			}
			if s.limiter != nil {
				s.limiter.RecordRequest()
			}
			s.log.Debug("generate requested", "input", logging.Redact(req.Input))
			go func(input string) {
				_ = s.orchestrator.HandleGenerate(c.Request.Context(), input, send)
			}(req.Input)

		case "cancel":
			s.orchestrator.HandleCancel(send)

		case "checkMemory":
			s.orchestrator.HandleCheckMemory(send)

		case "terminate":
			return
		}
	}
}

// Terminate unloads no state of its own; it exists so callers have a
// single symmetrical shutdown entry point matching generateSchema/
// cancelGeneration/checkMemory in the spec's adapter surface. Any
// outstanding engine teardown belongs to whoever owns the engine's
// lifetime (cmd/schemaforge), not this per-session adapter.
func (s *Server) Terminate(ctx context.Context, eng engine.Engine) {
	eng.Abort()
}

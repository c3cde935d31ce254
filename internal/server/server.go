// Package server is the browser-facing surface: a static web UI plus a
// WebSocket that carries user intents in and state updates out.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"lightfun-controller/internal/core"
	"lightfun-controller/internal/scheduler"
)

// PatternLister lists the available Lua patterns.
type PatternLister interface {
	GetPatternList() ([]string, error)
}

// ScheduleLister lists the saved schedules.
type ScheduleLister interface {
	GetAll() map[cron.EntryID]scheduler.ScheduleEntry
}

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub        *Hub
	httpServer *http.Server

	eventBus  *core.EventBus
	state     *core.State
	patterns  PatternLister
	schedules ScheduleLister
	intents   core.IntentChannel

	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance and starts its hub.
func NewServer(patterns PatternLister, eventBus *core.EventBus, state *core.State, schedules ScheduleLister, intents core.IntentChannel, port string, staticFilesDir string, allowedOrigins []string) *Server {
	hub := NewHub()
	go hub.Run()

	s := &Server{
		Hub:            hub,
		eventBus:       eventBus,
		state:          state,
		patterns:       patterns,
		schedules:      schedules,
		intents:        intents,
		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			log.Printf("[Server] WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
			return false
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.staticFilesDir)))
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: ":" + port, Handler: mux}

	sub := eventBus.Subscribe(forwardedEvents()...)
	go s.forwardEvents(sub)

	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and disconnects clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.Hub.Stop()
	return err
}

// forwardEvents pushes bus events to every client until the hub stops.
func (s *Server) forwardEvents(sub core.Subscriber) {
	defer s.eventBus.Unsubscribe(sub, forwardedEvents()...)

	for {
		select {
		case <-s.Hub.quit:
			return
		case ev := <-sub:
			if msg, ok := eventMessage(ev); ok {
				s.Hub.Broadcast(msg)
			}
		}
	}
}

// StatePayload is the full device state sent to clients.
func StatePayload(st core.State) map[string]interface{} {
	return map[string]interface{}{
		"connected": st.IsConnected,
		"isOn":      st.Power,
		"r":         st.Color.R(),
		"g":         st.Color.G(),
		"b":         st.Color.B(),
		"hex":       st.Color.Hex(),
		"warm":      st.Warm,
		"mode":      st.Mode,
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade error: %v", err)
		return
	}

	st := s.state.Clone()
	_ = conn.WriteJSON(NewMessage("connection_status", map[string]bool{"connected": st.IsConnected}))
	_ = conn.WriteJSON(NewMessage("device_state", StatePayload(st)))

	if patterns, err := s.patterns.GetPatternList(); err == nil {
		_ = conn.WriteJSON(NewMessage("pattern_list", patterns))
	}
	_ = conn.WriteJSON(NewMessage("pattern_status", map[string]string{"running": st.RunningPattern}))
	_ = conn.WriteJSON(NewMessage("schedule_list", s.schedules.GetAll()))

	select {
	case s.Hub.register <- conn:
	case <-s.Hub.quit:
		conn.Close()
		return
	}
	defer func() {
		select {
		case s.Hub.unregister <- conn:
		case <-s.Hub.quit:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			log.Printf("[Server] Error unmarshalling command: %v", err)
			continue
		}
		if cmd.Type == "" {
			continue
		}
		s.intents <- cmd.Intent()
	}
}

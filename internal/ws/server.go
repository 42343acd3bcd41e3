package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fjh658/hung-detect/internal/procstate"
)

// Server exposes the live event stream and a JSON view of the current
// process state. It is read-only: nothing it serves can mutate monitor
// state.
type Server struct {
	store       *procstate.Store
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
}

func NewServer(store *procstate.Store, broadcaster *Broadcaster) *Server {
	return &Server{
		store:       store,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/processes", s.handleProcesses)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c := s.broadcaster.AddClient(conn)

	// Drain (and discard) client reads so pings and close frames are
	// processed; the stream is one-way.
	go func() {
		defer s.broadcaster.RemoveClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SnapshotPayload{Processes: snapshotEntries(s.store)}); err != nil {
		log.Printf("processes encode error: %v", err)
	}
}

// ListenAndServe starts the HTTP server on host:port.
func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("[serve] listening on http://%s", addr)
	return http.ListenAndServe(addr, mux)
}

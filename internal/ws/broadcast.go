package ws

import (
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fjh658/hung-detect/internal/diagnose"
	"github.com/fjh658/hung-detect/internal/monitor"
	"github.com/fjh658/hung-detect/internal/procstate"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans monitor output out to websocket clients. It
// implements monitor.Emitter: the engine hands it events on the engine
// goroutine, and per-client send buffers keep slow readers from ever
// blocking the monitor loop.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	store   *procstate.Store
}

func NewBroadcaster(store *procstate.Store) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
		store:   store,
	}
}

// AddClient registers a connection and sends it the current snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	snapshot := WSMessage{
		Type:    MsgSnapshot,
		Payload: SnapshotPayload{Processes: snapshotEntries(b.store)},
	}
	data, _ := json.Marshal(snapshot)

	select {
	case c.send <- data:
	default:
		// Client too slow for even the initial snapshot, drop it.
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// RunStart implements monitor.Emitter.
func (b *Broadcaster) RunStart(info monitor.RunInfo) {
	b.broadcast(WSMessage{Type: MsgRunStart, Payload: RunStartPayload{Info: info}})
}

// Event implements monitor.Emitter.
func (b *Broadcaster) Event(ev procstate.Event) {
	b.broadcast(WSMessage{Type: MsgEvent, Payload: EventPayload{Event: ev}})
}

// DiagBatch implements monitor.Emitter.
func (b *Broadcaster) DiagBatch(batch diagnose.BatchResult) {
	b.broadcast(WSMessage{Type: MsgDiagnosis, Payload: DiagnosisPayload{Batch: batch}})
}

// RunStop implements monitor.Emitter.
func (b *Broadcaster) RunStop(summary monitor.RunSummary) {
	b.broadcast(WSMessage{Type: MsgRunStop, Payload: RunStopPayload{Summary: summary}})
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// snapshotEntries returns the store contents ordered by PID for stable
// snapshot messages.
func snapshotEntries(store *procstate.Store) []ProcessEntry {
	all := store.All()
	entries := make([]ProcessEntry, 0, len(all))
	for pid, snap := range all {
		entries = append(entries, ProcessEntry{PID: pid, Snapshot: snap})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	return entries
}

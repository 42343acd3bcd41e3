package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fjh658/hung-detect/internal/procstate"
)

func newTestServer(t *testing.T) (*httptest.Server, *procstate.Store, *Broadcaster) {
	t.Helper()
	store := procstate.NewStore()
	broadcaster := NewBroadcaster(store)
	server := NewServer(store, broadcaster)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, store, broadcaster
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func TestClientReceivesSnapshotOnConnect(t *testing.T) {
	ts, store, _ := newTestServer(t)
	store.Put(100, procstate.Snapshot{Name: "Safari", BundleID: "com.apple.Safari", Responding: true})
	store.Put(200, procstate.Snapshot{Name: "Mail", Responding: false})

	conn := dialWS(t, ts)
	msg := readMessage(t, conn)
	if msg.Type != MsgSnapshot {
		t.Fatalf("first message type = %s, want snapshot", msg.Type)
	}

	data, _ := json.Marshal(msg.Payload)
	var payload SnapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Processes) != 2 {
		t.Fatalf("snapshot has %d processes, want 2", len(payload.Processes))
	}
	// Entries are ordered by PID.
	if payload.Processes[0].PID != 100 || payload.Processes[1].PID != 200 {
		t.Errorf("snapshot order = %d, %d; want 100, 200", payload.Processes[0].PID, payload.Processes[1].PID)
	}
	if payload.Processes[1].Responding {
		t.Error("hung process reported as responding in snapshot")
	}
}

func TestBroadcastEventReachesClient(t *testing.T) {
	ts, _, broadcaster := newTestServer(t)
	conn := dialWS(t, ts)
	readMessage(t, conn) // snapshot

	// Wait for registration to complete before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for broadcaster.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	broadcaster.Event(procstate.Event{
		Time: time.Now(), Kind: procstate.BecameHung,
		PID: 913, Name: "AlDente",
	})

	msg := readMessage(t, conn)
	if msg.Type != MsgEvent {
		t.Fatalf("message type = %s, want event", msg.Type)
	}
	data, _ := json.Marshal(msg.Payload)
	var payload EventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Event.PID != 913 || payload.Event.Kind != procstate.BecameHung {
		t.Errorf("event payload = %+v", payload.Event)
	}
}

func TestProcessesEndpoint(t *testing.T) {
	ts, store, _ := newTestServer(t)
	store.Put(42, procstate.Snapshot{Name: "App", Responding: false})

	resp, err := http.Get(ts.URL + "/api/processes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload SnapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Processes) != 1 || payload.Processes[0].PID != 42 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	ts, _, broadcaster := newTestServer(t)
	conn := dialWS(t, ts)
	readMessage(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for broadcaster.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for broadcaster.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never removed after close")
		}
		time.Sleep(time.Millisecond)
	}
}

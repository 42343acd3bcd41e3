package procstate

import (
	"encoding/json"
	"time"
)

// EventKind classifies process lifecycle events.
type EventKind int

const (
	BecameHung       EventKind = iota // process stopped responding
	BecameResponsive                  // process recovered
	ProcessExited                     // process disappeared or its PID was reused
)

var kindNames = map[EventKind]string{
	BecameHung:       "became_hung",
	BecameResponsive: "became_responsive",
	ProcessExited:    "process_exited",
}

var kindFromName = map[string]EventKind{
	"became_hung":       BecameHung,
	"became_responsive": BecameResponsive,
	"process_exited":    ProcessExited,
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Event is an immutable emitted fact about one process. Events are
// append-only output; they are never mutated after creation.
type Event struct {
	Time     time.Time `json:"time"`
	Kind     EventKind `json:"kind"`
	PID      int32     `json:"pid"`
	Name     string    `json:"name"`
	BundleID string    `json:"bundleId,omitempty"`
}

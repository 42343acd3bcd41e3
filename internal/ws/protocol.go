package ws

import (
	"github.com/fjh658/hung-detect/internal/diagnose"
	"github.com/fjh658/hung-detect/internal/monitor"
	"github.com/fjh658/hung-detect/internal/procstate"
)

type MessageType string

const (
	MsgSnapshot  MessageType = "snapshot"
	MsgEvent     MessageType = "event"
	MsgDiagnosis MessageType = "diagnosis"
	MsgRunStart  MessageType = "run_start"
	MsgRunStop   MessageType = "run_stop"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProcessEntry is one tracked process in a snapshot message.
type ProcessEntry struct {
	PID int32 `json:"pid"`
	procstate.Snapshot
}

type SnapshotPayload struct {
	Processes []ProcessEntry `json:"processes"`
}

type EventPayload struct {
	Event procstate.Event `json:"event"`
}

type DiagnosisPayload struct {
	Batch diagnose.BatchResult `json:"batch"`
}

type RunStartPayload struct {
	Info monitor.RunInfo `json:"info"`
}

type RunStopPayload struct {
	Summary monitor.RunSummary `json:"summary"`
}

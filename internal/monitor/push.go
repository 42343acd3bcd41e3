package monitor

import (
	"encoding/binary"
)

// Push notification payload layout: the target PID is a little-endian
// uint32 at a fixed byte offset. Payloads shorter than the PID field, or
// carrying PID 0, are undecodable and trigger a rescan instead of an
// event.
const (
	pushPIDOffset = 4
	pushPIDWidth  = 4
	minPushLen    = pushPIDOffset + pushPIDWidth
)

// DecodePushPID extracts the target PID from a raw push payload.
func DecodePushPID(payload []byte) (int32, bool) {
	if len(payload) < minPushLen {
		return 0, false
	}
	pid := int32(binary.LittleEndian.Uint32(payload[pushPIDOffset : pushPIDOffset+pushPIDWidth]))
	if pid <= 0 {
		return 0, false
	}
	return pid, true
}

// pushEvent is a decoded push notification queued for the engine
// goroutine.
type pushEvent struct {
	kind PushKind
	pid  int32
}

// handlePush is the PushHandler bound at registration time. It runs on
// the push channel's thread: its only job is to decode the payload and
// hand off to the engine's serialization point. An undecodable payload
// or a full queue schedules a rescan so the miss is corrected out of
// cycle rather than waiting for the next poll tick.
func (e *Engine) handlePush(kind PushKind, payload []byte) {
	pid, ok := DecodePushPID(payload)
	if !ok {
		e.ScheduleRescan()
		return
	}
	select {
	case e.pushCh <- pushEvent{kind: kind, pid: pid}:
	default:
		e.ScheduleRescan()
	}
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fjh658/hung-detect/internal/diagnose"
	"github.com/fjh658/hung-detect/internal/procstate"
)

// ErrOracleUnavailable is returned by Start when the responsiveness
// oracle cannot answer at all. The engine never runs degraded without
// its primary signal source.
var ErrOracleUnavailable = errors.New("responsiveness oracle unavailable")

// RunInfo is the run-start meta event.
type RunInfo struct {
	RunID      string        `json:"runId"`
	Started    time.Time     `json:"started"`
	Interval   time.Duration `json:"interval"`
	PushActive bool          `json:"pushActive"`
}

// RunSummary is the run-stop meta event.
type RunSummary struct {
	RunID      string        `json:"runId"`
	Duration   time.Duration `json:"duration"`
	HungEvents int           `json:"hungEvents"`
}

// Emitter receives the engine's output: lifecycle events, diagnosis
// batches, and the run meta events. Calls happen on the engine goroutine
// and must not block.
type Emitter interface {
	RunStart(info RunInfo)
	Event(ev procstate.Event)
	DiagBatch(batch diagnose.BatchResult)
	RunStop(summary RunSummary)
}

// Dispatcher triggers diagnostic capture for newly hung processes.
// Implementations must return promptly; jobs run in the background.
type Dispatcher interface {
	Trigger(targets []diagnose.Target)
}

// Engine reconciles the poll scanner and the push channel into one event
// stream. All store mutation happens on the goroutine running Start;
// push callbacks and diagnosis workers communicate with it exclusively
// through channels, so poll application and push application can never
// interleave within a single mutation.
type Engine struct {
	cfg        Filter
	interval   time.Duration
	store      *procstate.Store
	oracle     Oracle
	enum       Enumerator
	push       PushChannel
	emitter    Emitter
	dispatcher Dispatcher

	runID    string
	pushCh   chan pushEvent
	rescanCh chan struct{}
	diagCh   chan diagnose.BatchResult

	pushActive bool
	hungEvents int
}

// NewEngine wires an engine. push and dispatcher may be nil (poll-only,
// no diagnosis). diagCh is the channel the dispatcher posts batch
// results to; pass the same channel given to diagnose.NewDispatcher.
func NewEngine(filter Filter, interval time.Duration, store *procstate.Store,
	oracle Oracle, enum Enumerator, push PushChannel,
	emitter Emitter, dispatcher Dispatcher, diagCh chan diagnose.BatchResult) *Engine {
	return &Engine{
		cfg:        filter,
		interval:   interval,
		store:      store,
		oracle:     oracle,
		enum:       enum,
		push:       push,
		emitter:    emitter,
		dispatcher: dispatcher,
		runID:      uuid.NewString(),
		pushCh:     make(chan pushEvent, 64),
		rescanCh:   make(chan struct{}, 1),
		diagCh:     diagCh,
	}
}

// RunID returns this run's identifier.
func (e *Engine) RunID() string { return e.runID }

// SetDispatcher installs the diagnosis dispatcher. Must be called before
// Start; it exists because the dispatcher is constructed with the
// engine's run ID.
func (e *Engine) SetDispatcher(d Dispatcher) { e.dispatcher = d }

// HungEvents returns the cumulative hung-event count. Call after Start
// has returned; it decides the process exit status.
func (e *Engine) HungEvents() int { return e.hungEvents }

// ScheduleRescan requests an out-of-cycle scan-diff-apply pass. Any
// number of rapid requests coalesce into at most one pending rescan.
// Safe to call from any goroutine.
func (e *Engine) ScheduleRescan() {
	select {
	case e.rescanCh <- struct{}{}:
	default:
	}
}

// Start runs the engine until ctx is cancelled. It performs the seed
// scan, registers the push channel (best effort), then serializes every
// state mutation through its select loop. The returned error is non-nil
// only for startup failures; a clean shutdown returns nil.
func (e *Engine) Start(ctx context.Context) error {
	started := time.Now()

	if !e.oracle.Available() {
		return ErrOracleUnavailable
	}

	// Seed the store from one initial scan, reporting anything already
	// hung at startup.
	curr, err := Scan(e.oracle, e.enum, e.cfg)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	e.store.SetAll(curr)

	if e.push != nil {
		if err := e.push.Register(e.handlePush); err != nil {
			log.Printf("[push] registration failed, falling back to poll-only: %v", err)
		} else {
			e.pushActive = true
		}
	}

	e.emitter.RunStart(RunInfo{
		RunID:      e.runID,
		Started:    started,
		Interval:   e.interval,
		PushActive: e.pushActive,
	})
	log.Printf("[monitor] run %s started: %d tracked, interval=%s, push=%v",
		e.runID, len(curr), e.interval, e.pushActive)

	// Report anything already hung at startup and capture it right away.
	var seedHung []diagnose.Target
	for pid, s := range curr {
		if s.Responding {
			continue
		}
		e.emitEvent(procstate.Event{
			Time: started, Kind: procstate.BecameHung,
			PID: pid, Name: s.Name, BundleID: s.BundleID,
		})
		seedHung = append(seedHung, diagnose.Target{PID: pid, Name: s.Name})
	}
	e.triggerDiagnosis(seedHung)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown(started)
			return nil
		case <-ticker.C:
			e.pollTick(time.Now())
		case <-e.rescanCh:
			e.pollTick(time.Now())
		case pe := <-e.pushCh:
			e.applyPushEvent(pe.kind, pe.pid, time.Now())
		case batch := <-e.diagCh:
			e.emitter.DiagBatch(batch)
		}
	}
}

func (e *Engine) shutdown(started time.Time) {
	if e.pushActive {
		e.push.Unregister()
	}
	// In-flight diagnosis jobs are abandoned; their processes die with
	// the run. Waiting out a spindump would hold interrupt handling
	// hostage for up to its full capture duration.
	e.emitter.RunStop(RunSummary{
		RunID:      e.runID,
		Duration:   time.Since(started),
		HungEvents: e.hungEvents,
	})
	log.Printf("[monitor] run %s stopped: %d hung events", e.runID, e.hungEvents)
}

// pollTick runs one scan-diff-apply cycle: scheduled ticks and coalesced
// rescans both land here. Scan failure after startup skips the cycle and
// leaves the store untouched.
func (e *Engine) pollTick(now time.Time) {
	curr, err := Scan(e.oracle, e.enum, e.cfg)
	if err != nil {
		log.Printf("[scan] error: %v", err)
		return
	}

	events := DiffStates(e.store.All(), curr, now)
	e.store.SetAll(curr)

	var newlyHung []diagnose.Target
	for _, ev := range events {
		e.emitEvent(ev)
		if ev.Kind == procstate.BecameHung {
			newlyHung = append(newlyHung, diagnose.Target{PID: ev.PID, Name: ev.Name})
		}
	}
	e.triggerDiagnosis(newlyHung)
}

// applyPushEvent applies one decoded push notification to the store.
// Returns false when the PID is unknown, in which case a rescan is
// scheduled so the miss is corrected out of cycle.
//
// Push events only change state for foreground-scope processes; the
// classification is re-derived at application time because a process may
// have changed activation policy since it was last scanned. Repeated
// notifications of the same kind are idempotent.
func (e *Engine) applyPushEvent(kind PushKind, pid int32, now time.Time) bool {
	snap, known := e.store.Get(pid)
	if !known {
		e.ScheduleRescan()
		return false
	}

	if fg, ok := e.enum.ForegroundScope(pid); ok {
		snap.Foreground = fg
	}
	if !snap.Foreground {
		// Accepted but not applied: non-foreground processes rely on
		// poll exclusively.
		return true
	}

	switch kind {
	case PushHung:
		if !snap.Responding {
			return true
		}
		snap.Responding = false
		e.store.Put(pid, snap)
		e.emitEvent(procstate.Event{
			Time: now, Kind: procstate.BecameHung,
			PID: pid, Name: snap.Name, BundleID: snap.BundleID,
		})
		e.triggerDiagnosis([]diagnose.Target{{PID: pid, Name: snap.Name}})
	case PushResponsive:
		if snap.Responding {
			return true
		}
		snap.Responding = true
		e.store.Put(pid, snap)
		e.emitEvent(procstate.Event{
			Time: now, Kind: procstate.BecameResponsive,
			PID: pid, Name: snap.Name, BundleID: snap.BundleID,
		})
	}
	return true
}

func (e *Engine) emitEvent(ev procstate.Event) {
	if ev.Kind == procstate.BecameHung {
		e.hungEvents++
	}
	e.emitter.Event(ev)
}

func (e *Engine) triggerDiagnosis(targets []diagnose.Target) {
	if e.dispatcher == nil || len(targets) == 0 {
		return
	}
	e.dispatcher.Trigger(targets)
}

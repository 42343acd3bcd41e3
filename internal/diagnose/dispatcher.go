package diagnose

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Dispatcher launches diagnostic capture jobs for newly hung processes.
// Triggers deduplicate by PID: while a batch containing a PID is running,
// later triggers for that PID are dropped. Jobs run concurrently on their
// own goroutines and never touch monitor state; each finished batch is
// handed back as one BatchResult on the results channel.
type Dispatcher struct {
	opts    Options
	runner  toolRunner
	results chan<- BatchResult

	mu       sync.Mutex
	inFlight map[int32]bool

	dirOnce sync.Once
	dir     string
	dirErr  error
}

func NewDispatcher(opts Options, results chan<- BatchResult) *Dispatcher {
	return &Dispatcher{
		opts:     opts,
		runner:   execRunner{},
		results:  results,
		inFlight: make(map[int32]bool),
	}
}

// Trigger starts capture jobs for the subset of targets not already in
// flight. It returns immediately; the batch runs in the background. When
// no per-PID job is accepted and no system-wide job is configured, the
// trigger is a no-op.
func (d *Dispatcher) Trigger(targets []Target) {
	accepted := d.claim(targets)
	if len(accepted) == 0 && !d.opts.SystemWide {
		return
	}
	go d.runBatch(accepted)
}

// InFlightCount returns the number of PIDs currently being captured.
func (d *Dispatcher) InFlightCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}

// claim atomically marks the accepted subset of targets in flight before
// any job launches, so that a second trigger arriving mid-launch cannot
// double-start jobs for the same PID.
func (d *Dispatcher) claim(targets []Target) []Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	var accepted []Target
	for _, t := range targets {
		if d.inFlight[t.PID] {
			continue
		}
		d.inFlight[t.PID] = true
		accepted = append(accepted, t)
	}
	return accepted
}

func (d *Dispatcher) release(targets []Target) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range targets {
		delete(d.inFlight, t.PID)
	}
}

func (d *Dispatcher) runBatch(accepted []Target) {
	started := time.Now()
	dir, dirErr := d.outputDir()
	jobs := d.buildJobs(accepted, dir, started)

	results := make([]Result, len(jobs))
	if dirErr != nil {
		// Without an output directory every job degrades to an explicit
		// skipped result rather than silently losing the trigger.
		for i, jb := range jobs {
			results[i] = Result{
				PID:  jb.pid,
				Name: jb.name,
				Tool: jb.tool,
				Err:  fmt.Sprintf("skipped: %v", dirErr),
			}
		}
	} else {
		var wg sync.WaitGroup
		for i, jb := range jobs {
			wg.Add(1)
			go func(i int, jb job) {
				defer wg.Done()
				results[i] = d.runJob(jb)
			}(i, jb)
		}
		wg.Wait()
		chownTreeToInvoker(dir)
	}

	d.release(accepted)

	batch := BatchResult{RunID: d.opts.RunID, Started: started, Results: results}
	select {
	case d.results <- batch:
	default:
		log.Printf("[diag] batch result dropped (channel full, %d results)", len(results))
	}
}

// runJob executes one capture tool with its own wall-clock timeout. A
// timed-out job is killed and reported as a failure, never dropped.
func (d *Dispatcher) runJob(jb job) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	err := d.runner.run(ctx, jb.argv)

	res := Result{
		PID:     jb.pid,
		Name:    jb.name,
		Tool:    jb.tool,
		Elapsed: time.Since(start),
	}
	switch {
	case err != nil && ctx.Err() == context.DeadlineExceeded:
		res.Err = fmt.Sprintf("%s timed out after %s", jb.tool, d.opts.Timeout)
	case err != nil:
		res.Err = err.Error()
	default:
		res.OutputPath = jb.output
	}
	return res
}

package diagnose

import (
	"time"
)

// Tool names as reported in results and artifact filenames.
const (
	ToolSample     = "sample"
	ToolSpindump   = "spindump"
	ToolSystemWide = "spindump-system"
)

// Target identifies one newly hung process to capture diagnostics for.
type Target struct {
	PID  int32
	Name string
}

// Result is the outcome of a single capture job. Results are immutable
// once produced and are never retried.
type Result struct {
	PID        int32         `json:"pid,omitempty"` // zero for system-wide jobs
	Name       string        `json:"name,omitempty"`
	Tool       string        `json:"tool"`
	OutputPath string        `json:"outputPath,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Err        string        `json:"error,omitempty"`
}

// OK reports whether the job completed successfully.
func (r Result) OK() bool { return r.Err == "" }

// BatchResult carries every result from one trigger batch. A batch is
// emitted as a single unit once all of its jobs have finished.
type BatchResult struct {
	RunID   string    `json:"runId"`
	Started time.Time `json:"started"`
	Results []Result  `json:"results"`
}

// Options configures the dispatcher for one run. It is read-only after
// construction.
type Options struct {
	RunID string

	Sample     bool
	Spindump   bool
	SystemWide bool

	SampleDuration   time.Duration
	SpindumpDuration time.Duration
	SpindumpInterval time.Duration

	// Timeout is the hard wall-clock limit for a single job process.
	Timeout time.Duration

	// OutputDir is the base directory for the per-run artifact
	// directory. Empty means the system temp directory.
	OutputDir string
}

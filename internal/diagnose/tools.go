package diagnose

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// job is one external capture process to run.
type job struct {
	pid    int32 // zero for system-wide
	name   string
	tool   string
	argv   []string
	output string
}

// buildJobs expands the accepted targets into the configured per-PID
// jobs, plus at most one system-wide job per batch.
func (d *Dispatcher) buildJobs(accepted []Target, dir string, started time.Time) []job {
	stamp := started.Format("20060102-150405")
	var jobs []job

	for _, t := range accepted {
		prefix := fmt.Sprintf("%s_%s_%d", stamp, safeFileName(t.Name), t.PID)
		if d.opts.Sample {
			out := filepath.Join(dir, prefix+".sample.txt")
			jobs = append(jobs, job{
				pid:  t.PID,
				name: t.Name,
				tool: ToolSample,
				argv: []string{
					"sample",
					strconv.Itoa(int(t.PID)),
					strconv.Itoa(seconds(d.opts.SampleDuration)),
					"-file", out,
				},
				output: out,
			})
		}
		if d.opts.Spindump {
			out := filepath.Join(dir, prefix+".spindump.txt")
			jobs = append(jobs, job{
				pid:  t.PID,
				name: t.Name,
				tool: ToolSpindump,
				argv: []string{
					"spindump",
					strconv.Itoa(int(t.PID)),
					strconv.Itoa(seconds(d.opts.SpindumpDuration)),
					fmt.Sprintf("%dms", d.opts.SpindumpInterval.Milliseconds()),
					"-file", out,
				},
				output: out,
			})
		}
	}

	if d.opts.SystemWide {
		out := filepath.Join(dir, stamp+"_system.spindump.txt")
		jobs = append(jobs, job{
			tool: ToolSystemWide,
			argv: []string{
				"spindump",
				strconv.Itoa(seconds(d.opts.SpindumpDuration)),
				fmt.Sprintf("%dms", d.opts.SpindumpInterval.Milliseconds()),
				"-file", out,
			},
			output: out,
		})
	}

	return jobs
}

// seconds rounds a duration to whole seconds, minimum 1.
func seconds(d time.Duration) int {
	s := int(d.Round(time.Second) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// safeFileName replaces characters that are unsafe in filenames with
// underscores so that arbitrary process names cannot escape the output
// directory.
func safeFileName(name string) string {
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// toolRunner runs a single external capture tool to completion. It
// exists so dispatcher tests can substitute a stub for real sample and
// spindump processes.
type toolRunner interface {
	run(ctx context.Context, argv []string) error
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if _, err := cmd.Output(); err != nil {
		exitError := new(exec.ExitError)
		if errors.As(err, &exitError) {
			return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(exitError.Stderr)))
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

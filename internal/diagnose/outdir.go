package diagnose

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// outputDir resolves the per-run artifact directory at most once. Every
// batch in the run shares the same directory; a creation failure is
// remembered and degrades all subsequent batches to skipped results.
func (d *Dispatcher) outputDir() (string, error) {
	d.dirOnce.Do(func() {
		base := d.opts.OutputDir
		if base == "" {
			base = os.TempDir()
		}
		dir := filepath.Join(base, fmt.Sprintf("hung-detect-%s-%s",
			time.Now().Format("20060102-150405"), shortRunID(d.opts.RunID)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			d.dirErr = fmt.Errorf("creating output directory: %w", err)
			return
		}
		chownToInvoker(dir)
		d.dir = dir
	})
	return d.dir, d.dirErr
}

// shortRunID keeps directory names readable: the first UUID group is
// unique enough within one machine's runs.
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

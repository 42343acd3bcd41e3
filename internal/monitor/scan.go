package monitor

import (
	"fmt"
	"strings"

	"github.com/fjh658/hung-detect/internal/procstate"
)

// Filter restricts which candidates a scan tracks.
type Filter struct {
	// PIDs limits tracking to the listed PIDs. Empty means all.
	PIDs []int32

	// NameContains keeps only processes whose display name contains the
	// substring, case-insensitively. Empty means all.
	NameContains string

	// ForegroundOnly keeps only foreground-scope processes.
	ForegroundOnly bool
}

func (f Filter) matches(c Candidate) bool {
	if f.ForegroundOnly && !c.Foreground {
		return false
	}
	if f.NameContains != "" &&
		!strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if len(f.PIDs) > 0 {
		found := false
		for _, pid := range f.PIDs {
			if pid == c.PID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Scan performs one full poll of all tracked processes: it enumerates
// the candidate set, applies the filter, and queries the oracle for each
// survivor. An unknown oracle answer is recorded as responding — the
// scan fails open and never reports a false hang. An empty result is
// valid; only enumeration failure is an error.
func Scan(oracle Oracle, enum Enumerator, filter Filter) (map[int32]procstate.Snapshot, error) {
	candidates, err := enum.Candidates()
	if err != nil {
		return nil, fmt.Errorf("enumerating processes: %w", err)
	}

	curr := make(map[int32]procstate.Snapshot, len(candidates))
	for _, c := range candidates {
		if !filter.matches(c) {
			continue
		}
		responding := true
		if hung, ok := oracle.IsUnresponsive(c.PID); ok {
			responding = !hung
		}
		curr[c.PID] = procstate.Snapshot{
			Name:       c.Name,
			BundleID:   c.BundleID,
			Foreground: c.Foreground,
			Responding: responding,
		}
	}
	return curr, nil
}

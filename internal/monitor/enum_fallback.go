package monitor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// FallbackEnumerator lists candidates via gopsutil. It is used on
// non-darwin builds and on macOS when lsappinfo is unavailable. Bundle
// identity and activation policy are not observable this way, so every
// candidate is reported as foreground with an empty bundle ID.
type FallbackEnumerator struct{}

func (FallbackEnumerator) Candidates() ([]Candidate, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	candidates := make([]Candidate, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			PID:        p.Pid,
			Name:       name,
			Foreground: true,
		})
	}
	return candidates, nil
}

func (FallbackEnumerator) ForegroundScope(pid int32) (bool, bool) {
	exists, err := process.PidExists(pid)
	if err != nil || !exists {
		return false, false
	}
	return true, true
}

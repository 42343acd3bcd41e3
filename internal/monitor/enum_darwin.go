//go:build darwin

package monitor

import (
	"fmt"
	"os/exec"
	"strings"
)

// LSAppEnumerator lists GUI applications via lsappinfo, which reports
// the display name, bundle ID, and activation policy the monitor needs
// for foreground scoping.
type LSAppEnumerator struct {
	path string
}

// newPlatformEnumerator prefers lsappinfo and falls back to a plain
// process listing when it is missing (stripped-down systems).
func newPlatformEnumerator() Enumerator {
	path, err := exec.LookPath("lsappinfo")
	if err != nil {
		return FallbackEnumerator{}
	}
	return &LSAppEnumerator{path: path}
}

func (e *LSAppEnumerator) Candidates() ([]Candidate, error) {
	out, err := exec.Command(e.path, "list").Output()
	if err != nil {
		return nil, fmt.Errorf("lsappinfo list: %w", err)
	}
	return parseLSAppInfoList(string(out)), nil
}

// ForegroundScope re-derives the activation policy for one PID. The
// two-step find/info sequence is how lsappinfo addresses a single app.
func (e *LSAppEnumerator) ForegroundScope(pid int32) (bool, bool) {
	asnOut, err := exec.Command(e.path, "find", fmt.Sprintf("pid=%d", pid)).Output()
	if err != nil {
		return false, false
	}
	asn := strings.TrimSpace(string(asnOut))
	if asn == "" {
		return false, false
	}

	infoOut, err := exec.Command(e.path, "info", "-only", "type", asn).Output()
	if err != nil {
		return false, false
	}
	if m := lsTypeRe.FindStringSubmatch(string(infoOut)); m != nil {
		return m[1] == "Foreground", true
	}
	return false, false
}

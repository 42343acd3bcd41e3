package monitor

import (
	"regexp"
	"strconv"
	"strings"
)

// lsappinfo output parsing. `lsappinfo list` prints one block per
// registered application:
//
//	23) "Safari" ASN:0x0-0x189189:
//	    bundle path="/Applications/Safari.app"
//	    bundleID="com.apple.Safari"
//	    pid = 3349 type="Foreground" flavor=3 ...
//
// The type field carries the activation policy: "Foreground" apps are
// the ones the Window Server delivers unresponsiveness notifications
// for; "UIElement" and "BackgroundOnly" apps are tracked by poll only.

var (
	lsAppHeaderRe = regexp.MustCompile(`^\s*\d+\)\s+"(.*)"\s+ASN:`)
	lsPIDRe       = regexp.MustCompile(`\bpid\s*=\s*(\d+)`)
	lsBundleRe    = regexp.MustCompile(`\bbundleID\s*=\s*"([^"]*)"`)
	lsTypeRe      = regexp.MustCompile(`\btype\s*=\s*"([^"]*)"`)
)

// parseLSAppInfoList converts `lsappinfo list` output into candidates.
// Blocks without a PID are skipped.
func parseLSAppInfoList(output string) []Candidate {
	var candidates []Candidate
	var cur *Candidate

	flush := func() {
		if cur != nil && cur.PID > 0 && cur.Name != "" {
			candidates = append(candidates, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(output, "\n") {
		if m := lsAppHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Candidate{Name: m[1]}
			continue
		}
		if cur == nil {
			continue
		}
		if m := lsPIDRe.FindStringSubmatch(line); m != nil && cur.PID == 0 {
			if pid, err := strconv.Atoi(m[1]); err == nil {
				cur.PID = int32(pid)
			}
		}
		if m := lsBundleRe.FindStringSubmatch(line); m != nil && cur.BundleID == "" {
			cur.BundleID = m[1]
		}
		if m := lsTypeRe.FindStringSubmatch(line); m != nil {
			cur.Foreground = m[1] == "Foreground"
		}
	}
	flush()

	return candidates
}

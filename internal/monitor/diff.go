package monitor

import (
	"time"

	"github.com/fjh658/hung-detect/internal/procstate"
)

// DiffStates compares the previous and current snapshot maps and returns
// the lifecycle events the transition implies. All events carry now as
// their timestamp.
//
// Policy:
//   - PID gone from curr: ProcessExited with the previous identity.
//   - PID present in both but with a different name or bundle ID: the
//     PID was reused. Emit ProcessExited for the old identity, then
//     BecameHung for the new one iff it is not responding. A freshly
//     appeared identity never gets a BecameResponsive event.
//   - Same identity continues: emit BecameHung or BecameResponsive on a
//     responding flip, nothing otherwise.
//   - PID new in curr: BecameHung iff not responding; newly discovered
//     healthy processes are not newsworthy.
//
// Within one call the only ordering guarantee is exit-before-rehung for
// a reused PID.
func DiffStates(prev, curr map[int32]procstate.Snapshot, now time.Time) []procstate.Event {
	var events []procstate.Event

	for pid, old := range prev {
		next, present := curr[pid]
		if !present {
			events = append(events, procstate.Event{
				Time: now, Kind: procstate.ProcessExited,
				PID: pid, Name: old.Name, BundleID: old.BundleID,
			})
			continue
		}

		if !old.SameIdentity(next) {
			// PID reuse: the old process is gone and a different one now
			// holds its PID. Conflating the two would misattribute the
			// old history to the new process.
			events = append(events, procstate.Event{
				Time: now, Kind: procstate.ProcessExited,
				PID: pid, Name: old.Name, BundleID: old.BundleID,
			})
			if !next.Responding {
				events = append(events, procstate.Event{
					Time: now, Kind: procstate.BecameHung,
					PID: pid, Name: next.Name, BundleID: next.BundleID,
				})
			}
			continue
		}

		switch {
		case old.Responding && !next.Responding:
			events = append(events, procstate.Event{
				Time: now, Kind: procstate.BecameHung,
				PID: pid, Name: next.Name, BundleID: next.BundleID,
			})
		case !old.Responding && next.Responding:
			events = append(events, procstate.Event{
				Time: now, Kind: procstate.BecameResponsive,
				PID: pid, Name: next.Name, BundleID: next.BundleID,
			})
		}
	}

	for pid, next := range curr {
		if _, present := prev[pid]; present {
			continue
		}
		if !next.Responding {
			events = append(events, procstate.Event{
				Time: now, Kind: procstate.BecameHung,
				PID: pid, Name: next.Name, BundleID: next.BundleID,
			})
		}
	}

	return events
}

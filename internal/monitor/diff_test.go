package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/fjh658/hung-detect/internal/procstate"
)

func snap(name, bundle string, responding bool) procstate.Snapshot {
	return procstate.Snapshot{Name: name, BundleID: bundle, Foreground: true, Responding: responding}
}

// eventSet collapses events to comparable keys, ignoring order.
func eventSet(events []procstate.Event) map[string]int {
	set := make(map[string]int)
	for _, ev := range events {
		set[fmt.Sprintf("%s/%s/%d", ev.Kind, ev.Name, ev.PID)]++
	}
	return set
}

func TestDiffTransitions(t *testing.T) {
	now := time.Now()
	prev := map[int32]procstate.Snapshot{
		100: snap("A", "ga", true),
		101: snap("B", "gb", false),
	}
	curr := map[int32]procstate.Snapshot{
		100: snap("A", "ga", false),
		101: snap("B", "gb", true),
	}

	events := DiffStates(prev, curr, now)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	set := eventSet(events)
	if set["became_hung/A/100"] != 1 {
		t.Error("missing BecameHung for PID 100")
	}
	if set["became_responsive/B/101"] != 1 {
		t.Error("missing BecameResponsive for PID 101")
	}
	for _, ev := range events {
		if !ev.Time.Equal(now) {
			t.Errorf("event timestamp %s, want %s", ev.Time, now)
		}
	}
}

func TestDiffPIDReuseEmitsExitThenHung(t *testing.T) {
	now := time.Now()
	prev := map[int32]procstate.Snapshot{103: snap("Old", "gold", true)}
	curr := map[int32]procstate.Snapshot{103: snap("New", "gnew", false)}

	events := DiffStates(prev, curr, now)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	// Exit for the old identity must precede the hang for the new one.
	if events[0].Kind != procstate.ProcessExited || events[0].Name != "Old" {
		t.Errorf("first event = %s/%s, want process_exited/Old", events[0].Kind, events[0].Name)
	}
	if events[1].Kind != procstate.BecameHung || events[1].Name != "New" {
		t.Errorf("second event = %s/%s, want became_hung/New", events[1].Kind, events[1].Name)
	}
}

func TestDiffPIDReuseResponsiveNewIdentity(t *testing.T) {
	// A reused PID whose new identity is healthy gets only the exit
	// event — never a recovery event for a just-appeared identity.
	prev := map[int32]procstate.Snapshot{103: snap("Old", "gold", false)}
	curr := map[int32]procstate.Snapshot{103: snap("New", "gnew", true)}

	events := DiffStates(prev, curr, time.Now())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	if events[0].Kind != procstate.ProcessExited || events[0].Name != "Old" {
		t.Errorf("event = %s/%s, want process_exited/Old", events[0].Kind, events[0].Name)
	}
}

func TestDiffBundleChangeIsReuse(t *testing.T) {
	// Same display name but a different bundle ID still counts as reuse.
	prev := map[int32]procstate.Snapshot{50: snap("App", "com.a", true)}
	curr := map[int32]procstate.Snapshot{50: snap("App", "com.b", false)}

	events := DiffStates(prev, curr, time.Now())
	set := eventSet(events)
	if set["process_exited/App/50"] != 1 || set["became_hung/App/50"] != 1 {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestDiffNewHealthyIsSilent(t *testing.T) {
	prev := map[int32]procstate.Snapshot{}
	curr := map[int32]procstate.Snapshot{200: snap("Healthy", "gh", true)}

	if events := DiffStates(prev, curr, time.Now()); len(events) != 0 {
		t.Errorf("got %d events, want 0: %+v", len(events), events)
	}
}

func TestDiffNewHungIsReported(t *testing.T) {
	prev := map[int32]procstate.Snapshot{}
	curr := map[int32]procstate.Snapshot{200: snap("Stuck", "gs", false)}

	events := DiffStates(prev, curr, time.Now())
	if len(events) != 1 || events[0].Kind != procstate.BecameHung {
		t.Fatalf("got %+v, want one BecameHung", events)
	}
}

func TestDiffExitForVanishedPID(t *testing.T) {
	prev := map[int32]procstate.Snapshot{
		100: snap("A", "ga", true),
		101: snap("B", "gb", false),
	}
	curr := map[int32]procstate.Snapshot{}

	events := DiffStates(prev, curr, time.Now())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	set := eventSet(events)
	if set["process_exited/A/100"] != 1 || set["process_exited/B/101"] != 1 {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestDiffUnchangedIsSilent(t *testing.T) {
	states := map[int32]procstate.Snapshot{
		1: snap("A", "ga", true),
		2: snap("B", "gb", false),
	}
	if events := DiffStates(states, states, time.Now()); len(events) != 0 {
		t.Errorf("identical maps produced events: %+v", events)
	}
}

func TestDiffEmptyBoth(t *testing.T) {
	if events := DiffStates(nil, nil, time.Now()); len(events) != 0 {
		t.Errorf("nil maps produced events: %+v", events)
	}
}

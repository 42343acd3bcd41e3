package monitor

import (
	"errors"
	"sync"
	"testing"
)

// fakeOracle answers from a hung set. PIDs in unknown produce ok=false.
// State changes are guarded so tests can flip answers while the engine
// polls.
type fakeOracle struct {
	mu        sync.Mutex
	hung      map[int32]bool
	unknown   map[int32]bool
	available bool
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		hung:      make(map[int32]bool),
		unknown:   make(map[int32]bool),
		available: true,
	}
}

func (o *fakeOracle) Available() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.available
}

func (o *fakeOracle) IsUnresponsive(pid int32) (bool, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unknown[pid] {
		return false, false
	}
	return o.hung[pid], true
}

func (o *fakeOracle) setHung(pid int32, hung bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hung[pid] = hung
}

// fakeEnum serves a fixed candidate list and per-PID foreground answers.
type fakeEnum struct {
	mu         sync.Mutex
	candidates []Candidate
	err        error
	foreground map[int32]bool // ForegroundScope answers; absent PID means ok=false
}

func newFakeEnum(candidates ...Candidate) *fakeEnum {
	fg := make(map[int32]bool, len(candidates))
	for _, c := range candidates {
		fg[c.PID] = c.Foreground
	}
	return &fakeEnum{candidates: candidates, foreground: fg}
}

func (e *fakeEnum) Candidates() ([]Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([]Candidate, len(e.candidates))
	copy(out, e.candidates)
	return out, nil
}

func (e *fakeEnum) ForegroundScope(pid int32) (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fg, ok := e.foreground[pid]
	return fg, ok
}

func (e *fakeEnum) setCandidates(candidates []Candidate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = candidates
}

func (e *fakeEnum) setForeground(pid int32, fg bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.foreground[pid] = fg
}

func TestScanFailsOpenOnUnknown(t *testing.T) {
	oracle := newFakeOracle()
	oracle.unknown[100] = true
	enum := newFakeEnum(Candidate{PID: 100, Name: "Mystery", Foreground: true})

	curr, err := Scan(oracle, enum, Filter{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	snap, ok := curr[100]
	if !ok {
		t.Fatal("candidate with unknown oracle answer was dropped")
	}
	if !snap.Responding {
		t.Error("unknown oracle answer recorded as hung; must fail open")
	}
}

func TestScanRecordsHung(t *testing.T) {
	oracle := newFakeOracle()
	oracle.setHung(100, true)
	enum := newFakeEnum(
		Candidate{PID: 100, Name: "Stuck", BundleID: "com.stuck", Foreground: true},
		Candidate{PID: 200, Name: "Fine", BundleID: "com.fine", Foreground: true},
	)

	curr, err := Scan(oracle, enum, Filter{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if curr[100].Responding {
		t.Error("hung process recorded as responding")
	}
	if !curr[200].Responding {
		t.Error("healthy process recorded as hung")
	}
	if curr[100].BundleID != "com.stuck" {
		t.Errorf("bundle ID not carried through: %+v", curr[100])
	}
}

func TestScanForegroundOnlyFilter(t *testing.T) {
	oracle := newFakeOracle()
	enum := newFakeEnum(
		Candidate{PID: 1, Name: "App", Foreground: true},
		Candidate{PID: 2, Name: "Helper", Foreground: false},
	)

	curr, err := Scan(oracle, enum, Filter{ForegroundOnly: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(curr) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(curr))
	}
	if _, ok := curr[1]; !ok {
		t.Error("foreground candidate missing")
	}
}

func TestScanNameFilterCaseInsensitive(t *testing.T) {
	oracle := newFakeOracle()
	enum := newFakeEnum(
		Candidate{PID: 1, Name: "Safari", Foreground: true},
		Candidate{PID: 2, Name: "Mail", Foreground: true},
	)

	curr, err := Scan(oracle, enum, Filter{NameContains: "safa"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(curr) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(curr))
	}
	if _, ok := curr[1]; !ok {
		t.Error("name-matched candidate missing")
	}
}

func TestScanPIDFilter(t *testing.T) {
	oracle := newFakeOracle()
	enum := newFakeEnum(
		Candidate{PID: 1, Name: "A", Foreground: true},
		Candidate{PID: 2, Name: "B", Foreground: true},
		Candidate{PID: 3, Name: "C", Foreground: true},
	)

	curr, err := Scan(oracle, enum, Filter{PIDs: []int32{2, 3}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(curr) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(curr))
	}
	if _, ok := curr[1]; ok {
		t.Error("filtered-out PID present")
	}
}

func TestScanEmptyResultIsValid(t *testing.T) {
	curr, err := Scan(newFakeOracle(), newFakeEnum(), Filter{})
	if err != nil {
		t.Fatalf("Scan of empty candidate set: %v", err)
	}
	if len(curr) != 0 {
		t.Errorf("got %d snapshots, want 0", len(curr))
	}
}

func TestScanEnumerationErrorPropagates(t *testing.T) {
	enum := newFakeEnum()
	enum.err = errors.New("boom")
	if _, err := Scan(newFakeOracle(), enum, Filter{}); err == nil {
		t.Error("enumeration error not propagated")
	}
}

package monitor

// Candidate is one trackable process reported by the Enumerator.
type Candidate struct {
	PID        int32
	Name       string
	BundleID   string
	Foreground bool
}

// Oracle answers the responsiveness question for a single PID. How the
// answer is obtained (private Window Server APIs on macOS) is not part
// of the monitor's design; per-call failures must fail open.
//
// Implementations must be cheap enough to query once per candidate per
// poll tick. They are called from the engine goroutine only.
type Oracle interface {
	// IsUnresponsive reports whether pid is hung. ok=false means the
	// oracle cannot answer for this PID; callers treat that as
	// responding so an unknown never becomes a false hang.
	IsUnresponsive(pid int32) (hung bool, ok bool)

	// Available reports whether the oracle can answer at all.
	// Unavailability at startup is fatal for the engine.
	Available() bool
}

// Enumerator produces the current candidate set and answers foreground
// classification queries for single PIDs.
type Enumerator interface {
	// Candidates returns every currently trackable process with its
	// display name, bundle identity, and foreground classification.
	Candidates() ([]Candidate, error)

	// ForegroundScope re-derives the foreground classification for one
	// PID at call time. ok=false means the classification could not be
	// determined (process gone, platform limitation).
	ForegroundScope(pid int32) (fg bool, ok bool)
}

// PushKind distinguishes the two push notification event kinds.
type PushKind int

const (
	PushHung PushKind = iota
	PushResponsive
)

func (k PushKind) String() string {
	switch k {
	case PushHung:
		return "hung"
	case PushResponsive:
		return "responsive"
	}
	return "unknown"
}

// PushHandler receives raw push notifications. It may be called from any
// thread; implementations must only decode the payload and hand off to
// the engine, never touch shared state directly.
type PushHandler func(kind PushKind, payload []byte)

// PushChannel registers for asynchronous hung/responsive notifications.
// Registration may fail; the engine then runs poll-only.
type PushChannel interface {
	Register(h PushHandler) error
	Unregister()
}
